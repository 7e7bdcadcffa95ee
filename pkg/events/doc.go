/*
Package events is an in-memory pub/sub broker for lifecycle notifications.

The manager publishes an Event whenever a source is created, started, stopped,
halted by its failure policy or removed, and when dashboards are saved or a
reload is broadcast. Subscribers get a buffered channel; slow subscribers miss
events rather than blocking the broker.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
		fmt.Println(ev.Type, ev.SubjectID)
	}

These notifications are separate from the status events the distributor
delivers to dashboards; they feed the server's audit log.
*/
package events
