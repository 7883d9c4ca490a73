/*
Package reconciler periodically repairs lab endpoint state.

A lab endpoint that is stopped while tasks are in flight leaves them
stored as queued or running forever, and a deployment polling them would
never finish. The reconciler runs the lab's repair pass at startup and
then on an interval, failing orphaned tasks and pruning cluster
membership that names deleted hosts.

	r := reconciler.NewReconciler(labCluster, 10*time.Second)
	r.Start()
	defer r.Stop()
*/
package reconciler
