package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// Backend is a management endpoint the server exposes over HTTP
type Backend interface {
	cluster.Client

	// TaskStatus returns the current state of one task
	TaskStatus(ctx context.Context, taskID string) (types.TaskResult, error)

	// License returns the license key assigned to a cluster
	License(ctx context.Context, clusterName string) (string, error)
}

// Config holds API server settings
type Config struct {
	// Users maps user names to passwords. Empty disables authentication.
	Users map[string]string

	// ReadOnly rejects every request that would change cluster state
	ReadOnly bool

	Version string

	// Health backs /healthz, /ready and /live (default: metrics.DefaultHealth)
	Health *metrics.Health
}

// Server serves the management API, metrics and health endpoints
type Server struct {
	router  chi.Router
	backend Backend
	cfg     Config
	health  *metrics.Health
	logger  zerolog.Logger
}

// NewServer creates a new API server
func NewServer(backend Backend, cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		backend: backend,
		cfg:     cfg,
		health:  cfg.Health,
		logger:  log.WithComponent("api"),
	}
	if s.health == nil {
		s.health = metrics.DefaultHealth
	}

	if cfg.Version != "" {
		s.health.SetVersion(cfg.Version)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is canceled
func (s *Server) Start(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on an existing listener until ctx is canceled
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	server := &http.Server{
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	s.health.Set(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Management API listening")

	select {
	case err := <-errCh:
		s.health.Set(metrics.ComponentAPI, false, "stopped")
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.health.Set(metrics.ComponentAPI, false, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", metrics.Handler())
	s.router.Get("/healthz", s.health.HealthHandler())
	s.router.Get("/ready", s.health.ReadyHandler())
	s.router.Get("/live", s.health.LivenessHandler())

	s.router.Route(Prefix, func(r chi.Router) {
		if len(s.cfg.Users) > 0 {
			r.Use(middleware.BasicAuth("burrow", s.cfg.Users))
		}
		if s.cfg.ReadOnly {
			r.Use(ReadOnly)
		}

		r.Get("/clusters/{cluster}/hosts", s.listHosts)
		r.Post("/clusters/{cluster}/reconfigure", s.reconfigure)
		r.Post("/clusters/{cluster}/performance", s.enablePerformance)
		r.Get("/clusters/{cluster}/license", s.getLicense)
		r.Put("/clusters/{cluster}/license", s.assignLicense)

		r.Post("/hosts/properties", s.hostProperties)
		r.Get("/hosts/{host}/disks", s.queryDisks)
		r.Post("/hosts/{host}/disks/{disk}/wipe", s.wipeDisk)
		r.Post("/hosts/{host}/network", s.enableNetwork)
		r.Get("/hosts/{host}/diskgroups", s.queryDiskGroups)
		r.Post("/hosts/{host}/diskgroups", s.createDiskGroup)

		r.Get("/tasks/{task}", s.taskStatus)
	})
}

func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	ids, err := s.backend.ListHosts(r.Context(), param(r, "cluster"))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	WriteJSON(w, http.StatusOK, HostsResponse{Hosts: ids})
}

func (s *Server) hostProperties(w http.ResponseWriter, r *http.Request) {
	var req PropertiesRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	props, err := s.backend.GetHostProperties(r.Context(), req.HostIDs, req.Fields)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, PropertiesResponse{Properties: props})
}

func (s *Server) queryDisks(w http.ResponseWriter, r *http.Request) {
	disks, err := s.backend.QueryDisks(r.Context(), param(r, "host"))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if disks == nil {
		disks = []types.Disk{}
	}
	WriteJSON(w, http.StatusOK, DisksResponse{Disks: disks})
}

func (s *Server) wipeDisk(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.WipeDiskPartitions(r.Context(), param(r, "host"), param(r, "disk")); err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) enableNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.backend.EnableStorageNetwork(r.Context(), param(r, "host"), types.NetworkConfig{
		Device:              req.Device,
		UpstreamIPAddress:   req.UpstreamIPAddress,
		DownstreamIPAddress: req.DownstreamIPAddress,
	})
	s.writeTask(w, r, task, err)
}

func (s *Server) reconfigure(w http.ResponseWriter, r *http.Request) {
	var req ReconfigureRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.backend.ReconfigureCluster(r.Context(), param(r, "cluster"), req.Config)
	s.writeTask(w, r, task, err)
}

func (s *Server) createDiskGroup(w http.ResponseWriter, r *http.Request) {
	var req DiskGroupRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.backend.CreateDiskGroup(r.Context(), types.DiskGroupSpec{
		HostID:   param(r, "host"),
		Cache:    req.Cache,
		Capacity: req.Capacity,
		Mode:     req.Mode,
	})
	s.writeTask(w, r, task, err)
}

func (s *Server) queryDiskGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.backend.QueryDiskGroups(r.Context(), param(r, "host"))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if groups == nil {
		groups = []types.DiskGroupMapping{}
	}
	WriteJSON(w, http.StatusOK, DiskGroupsResponse{DiskGroups: groups})
}

func (s *Server) enablePerformance(w http.ResponseWriter, r *http.Request) {
	task, err := s.backend.EnablePerformanceService(r.Context(), param(r, "cluster"))
	s.writeTask(w, r, task, err)
}

func (s *Server) assignLicense(w http.ResponseWriter, r *http.Request) {
	var req LicenseRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.backend.AssignLicense(r.Context(), param(r, "cluster"), req.LicenseKey); err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLicense(w http.ResponseWriter, r *http.Request) {
	key, err := s.backend.License(r.Context(), param(r, "cluster"))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, LicenseResponse{LicenseKey: key})
}

func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.backend.TaskStatus(r.Context(), param(r, "task"))
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}

	resp := NewTaskResponse(result.Task)
	resp.State = result.State
	resp.Error = result.Error
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) writeTask(w http.ResponseWriter, r *http.Request, task types.DeploymentTask, err error) {
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	resp := NewTaskResponse(task)
	resp.State = types.TaskStateQueued
	WriteJSON(w, http.StatusAccepted, resp)
}

// writeBackendError maps backend errors onto HTTP status codes
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	if id, ok := cluster.ObjectNotFoundID(err); ok {
		WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Object: id})
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cluster.ErrRejected):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Backend request failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
