package api

import (
	"net/url"

	"github.com/cuemby/burrow/pkg/types"
)

// Prefix is the root of every management route
const Prefix = "/api/v1"

// Route paths, relative to the endpoint base URL
func HostsPath(clusterName string) string {
	return Prefix + "/clusters/" + url.PathEscape(clusterName) + "/hosts"
}

func HostPropertiesPath() string {
	return Prefix + "/hosts/properties"
}

func DisksPath(hostID string) string {
	return Prefix + "/hosts/" + url.PathEscape(hostID) + "/disks"
}

func WipePath(hostID, diskID string) string {
	return DisksPath(hostID) + "/" + url.PathEscape(diskID) + "/wipe"
}

func NetworkPath(hostID string) string {
	return Prefix + "/hosts/" + url.PathEscape(hostID) + "/network"
}

func ReconfigurePath(clusterName string) string {
	return Prefix + "/clusters/" + url.PathEscape(clusterName) + "/reconfigure"
}

func DiskGroupsPath(hostID string) string {
	return Prefix + "/hosts/" + url.PathEscape(hostID) + "/diskgroups"
}

func PerformancePath(clusterName string) string {
	return Prefix + "/clusters/" + url.PathEscape(clusterName) + "/performance"
}

func LicensePath(clusterName string) string {
	return Prefix + "/clusters/" + url.PathEscape(clusterName) + "/license"
}

func TaskPath(taskID string) string {
	return Prefix + "/tasks/" + url.PathEscape(taskID)
}

// HostsResponse lists host IDs in enumeration order
type HostsResponse struct {
	Hosts []string `json:"hosts"`
}

// PropertiesRequest asks for properties of a batch of hosts
type PropertiesRequest struct {
	HostIDs []string `json:"hostIds" validate:"required,min=1,dive,required"`
	Fields  []string `json:"fields" validate:"required,min=1,dive,required"`
}

// PropertiesResponse maps host IDs to their property values
type PropertiesResponse struct {
	Properties map[string]types.HostProperties `json:"properties"`
}

// DisksResponse lists the disks of a host
type DisksResponse struct {
	Disks []types.Disk `json:"disks"`
}

// NetworkRequest enables the storage interface of a host
type NetworkRequest struct {
	Device              string `json:"device" validate:"required"`
	UpstreamIPAddress   string `json:"upstreamIpAddress" validate:"omitempty,ip"`
	DownstreamIPAddress string `json:"downstreamIpAddress" validate:"omitempty,ip"`
}

// ReconfigureRequest carries the cluster reconfiguration
type ReconfigureRequest struct {
	Config types.ClusterReconfigRequest `json:"config"`
}

// DiskGroupRequest creates disk groups on the host named in the path
type DiskGroupRequest struct {
	Cache    []types.Disk         `json:"cache" validate:"required,min=1"`
	Capacity []types.Disk         `json:"capacity" validate:"required,min=1"`
	Mode     types.DeploymentMode `json:"mode" validate:"required,oneof=allFlash hybrid"`
}

// DiskGroupsResponse lists the disk groups of a host
type DiskGroupsResponse struct {
	DiskGroups []types.DiskGroupMapping `json:"diskGroups"`
}

// LicenseRequest assigns a license key
type LicenseRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required"`
}

// LicenseResponse carries the license key of a cluster, empty when none
// is assigned
type LicenseResponse struct {
	LicenseKey string `json:"licenseKey"`
}

// TaskResponse is a task handle or its current state
type TaskResponse struct {
	ID        string              `json:"id"`
	Operation types.TaskOperation `json:"operation"`
	Target    string              `json:"target"`
	State     types.TaskState     `json:"state,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request. Object names the
// managed object that no longer exists on a 404.
type ErrorResponse struct {
	Error  string `json:"error"`
	Object string `json:"object,omitempty"`
}

// NewTaskResponse converts a task handle
func NewTaskResponse(t types.DeploymentTask) TaskResponse {
	return TaskResponse{ID: t.ID, Operation: t.Operation, Target: t.Target}
}

// Task returns the handle described by the response
func (r TaskResponse) Task() types.DeploymentTask {
	return types.DeploymentTask{ID: r.ID, Operation: r.Operation, Target: r.Target}
}
