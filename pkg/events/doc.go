/*
Package events provides an in-process pub/sub broker for deployment
progress.

The deployer publishes an event when a stage starts, completes or fails,
when a task is issued or fails, and when a disk is wiped, refused or
claimed. Subscribers receive events on a buffered channel; a slow
subscriber drops events instead of blocking the run.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.Stage, ev.Message)
		}
	}()

	d := deploy.NewDeployer(client, confirmer, deploy.WithBroker(broker))

Events are informational. Nothing in the deployment waits on a subscriber.
*/
package events
