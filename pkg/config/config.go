package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/deploy"
	"github.com/cuemby/burrow/pkg/faultdomain"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/go-playground/validator/v10"
)

// Environment variables consulted for options left unset on the command line
const (
	EnvEndpoint = "BURROW_ENDPOINT"
	EnvUser     = "BURROW_USER"
	EnvPassword = "BURROW_PASSWORD"
	EnvCluster  = "BURROW_CLUSTER"
	EnvLogLevel = "BURROW_LOG_LEVEL"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
)

var validate = validator.New()

func init() {
	// Report fields by their command line flag
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("flag"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	validate.RegisterValidation("faultdomains", func(fl validator.FieldLevel) bool {
		_, err := faultdomain.Parse(fl.Field().String())
		return err == nil
	})
}

// Connection holds the management endpoint settings
type Connection struct {
	Endpoint     string        `flag:"endpoint" validate:"required,url"`
	User         string        `flag:"user" validate:"required"`
	Password     string        `flag:"password" validate:"required"`
	Timeout      time.Duration `flag:"timeout" validate:"gt=0"`
	PollInterval time.Duration `flag:"poll-interval" validate:"gt=0"`
}

// Options are the command line settings of a deployment run
type Options struct {
	Connection

	ClusterName  string `flag:"cluster" validate:"required"`
	AllFlash     bool   `flag:"allflash"`
	VMKNic       string `flag:"vmknic" validate:"required"`
	FaultDomains string `flag:"faultdomains" validate:"omitempty,faultdomains"`
	LicenseKey   string `flag:"license"`
	LogLevel     string `flag:"log-level" validate:"omitempty,oneof=debug info warn error"`
}

// NewOptions returns options with transport defaults set
func NewOptions() *Options {
	return &Options{
		Connection: Connection{
			Timeout:      DefaultTimeout,
			PollInterval: DefaultPollInterval,
		},
	}
}

// ApplyEnv fills unset options from the environment
func (o *Options) ApplyEnv() {
	o.ApplyLookup(os.LookupEnv)
}

// ApplyLookup fills unset options using lookup
func (o *Options) ApplyLookup(lookup func(string) (string, bool)) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	fill(&o.Endpoint, EnvEndpoint)
	fill(&o.User, EnvUser)
	fill(&o.Password, EnvPassword)
	fill(&o.ClusterName, EnvCluster)
	fill(&o.LogLevel, EnvLogLevel)
}

// ValidateConnection checks the endpoint settings only
func (o *Options) ValidateConnection() error {
	return describe(validate.Struct(o.Connection))
}

// ValidateQuery checks the settings needed by read-only commands
func (o *Options) ValidateQuery() error {
	if err := o.ValidateConnection(); err != nil {
		return err
	}
	if o.ClusterName == "" {
		return errors.New("invalid options: cluster is required")
	}
	return nil
}

// Validate checks every option of a deployment run
func (o *Options) Validate() error {
	return describe(validate.Struct(o))
}

// Mode returns the deployment mode selected by the options
func (o *Options) Mode() types.DeploymentMode {
	if o.AllFlash {
		return types.ModeAllFlash
	}
	return types.ModeHybrid
}

// DeployConfig validates the options and converts them into the
// immutable configuration of a run
func (o *Options) DeployConfig() (deploy.Config, error) {
	if err := o.Validate(); err != nil {
		return deploy.Config{}, err
	}

	cfg := deploy.Config{
		ClusterName: o.ClusterName,
		Mode:        o.Mode(),
		Network: types.NetworkConfig{
			Device:              o.VMKNic,
			UpstreamIPAddress:   types.DefaultUpstreamIPAddress,
			DownstreamIPAddress: types.DefaultDownstreamIPAddress,
		},
		LicenseKey: o.LicenseKey,
	}

	if strings.TrimSpace(o.FaultDomains) != "" {
		specs, err := faultdomain.Parse(o.FaultDomains)
		if err != nil {
			return deploy.Config{}, fmt.Errorf("invalid options: %w", err)
		}
		cfg.FaultDomains = specs
	}

	return cfg, nil
}

func describe(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid options: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "faultdomains":
			_, perr := faultdomain.Parse(fmt.Sprint(fe.Value()))
			msgs = append(msgs, fmt.Sprintf("%s: %v", fe.Field(), perr))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}
