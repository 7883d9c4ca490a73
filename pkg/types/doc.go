/*
Package types defines the data model shared by every Burrow package.

The model has three layers:

  - Inventory: Host and Disk as reported by the management endpoint,
    with each disk's EligibilityState and DiskRole.
  - Intent: DiskGroupSpec, NetworkConfig, ClusterReconfigRequest and
    FaultDomain, the requests a deployment issues.
  - Execution: DeploymentTask handles returned by asynchronous calls and
    the TaskResult each one settles into.

The lab endpoint additionally persists ClusterState, HostState and
TaskRecord, which wrap the inventory types with the state the endpoint
owns (cluster membership, claimed disk groups, injected faults).

Disk sizes are reported as a block count and block size. Use
Disk.SizeBytes for the product; never compare raw block counts across
disks with different block sizes.
*/
package types
