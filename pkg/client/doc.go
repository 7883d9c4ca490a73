/*
Package client implements cluster.Client over the management HTTP API
served by pkg/api.

Requests carry basic authentication and JSON bodies. Error responses are
mapped back onto the errors the deployment code understands: a 404 that
names an object becomes a cluster object-not-found error, a 409 wraps
cluster.ErrRejected, and anything else is returned as an *APIError.

Asynchronous operations return the task handle immediately.
WaitForTasks polls each task until it reaches a terminal state:

	c := client.NewFromConnection(opts.Connection)
	task, err := c.EnableStorageNetwork(ctx, "host-1", netCfg)
	results, err := c.WaitForTasks(ctx, []types.DeploymentTask{task})
*/
package client
