/*
Package api implements the Burrow management HTTP API.

The API exposes a Backend (any cluster.Client that can also report task
status) over JSON. The lab endpoint serves a simulated fleet through it,
and pkg/client speaks it, so a deployment can be exercised end to end
without real hardware.

# Architecture

	┌──────────────────── burrow deploy ─────────────────────────┐
	│                                                              │
	│  deploy.Deployer ──► client.Client (cluster.Client)         │
	│                                                              │
	└──────────────────────────┬───────────────────────────────┘
	                           │ HTTP + JSON, basic auth
	┌──────────────────────────▼──── burrow lab serve ──────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │           api.Server (chi router)             │          │
	│  │  - RequestID, RealIP, Recoverer               │          │
	│  │  - Request logging and metrics                │          │
	│  │  - BasicAuth, ReadOnly                        │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │           lab.Cluster (Backend)               │          │
	│  │  - Disk and cluster state in BoltDB           │          │
	│  │  - Tasks run asynchronously                   │          │
	│  └────────────────────────────────────────────────┘         │
	└──────────────────────────────────────────────────────────┘

# Routes

All management routes live under /api/v1:

	GET    /clusters/{cluster}/hosts           list host IDs
	POST   /clusters/{cluster}/reconfigure     reconfigure, returns a task
	POST   /clusters/{cluster}/performance     enable performance service, returns a task
	GET    /clusters/{cluster}/license         read the assigned license key
	PUT    /clusters/{cluster}/license         assign a license key
	POST   /hosts/properties                   batch property lookup
	GET    /hosts/{host}/disks                 query disks
	POST   /hosts/{host}/disks/{disk}/wipe     wipe partitions
	POST   /hosts/{host}/network               enable storage network, returns a task
	GET    /hosts/{host}/diskgroups            query disk groups
	POST   /hosts/{host}/diskgroups            create disk groups, returns a task
	GET    /tasks/{task}                       task state

/metrics, /healthz, /ready and /live are served outside the prefix and
without authentication.

# Errors

Every failure has a JSON body of the form {"error": "...", "object": "..."}.

	400  malformed JSON or a request that fails validation
	401  missing or wrong credentials
	403  write request on a read-only server
	404  unknown object; "object" names it when the backend reported one
	409  request rejected by the endpoint, such as wiping an in-use disk
	500  anything else

Task-returning routes answer 202 with the task handle. Clients poll
/tasks/{task} until the state is success or error.

# Read-only Mode

A server started with Config.ReadOnly rejects every write with 403. The
batch property lookup is a POST but is treated as a read, so inventory
and plan commands keep working against a read-only endpoint.
*/
package api
