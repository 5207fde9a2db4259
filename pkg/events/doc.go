/*
Package events delivers storage-engine events to interested subscribers.

The engine raises a single event: HostAttributesChanged, posted when a
write actually changes a host's attributes (SaveHostAttributes reports
true). Notifier fans that event out to any number of subscribers over
bounded channels; a subscriber that falls behind misses events instead of
stalling the engine's write path.

# Usage

	notifier := events.NewNotifier()
	defer notifier.Close()

	sub := notifier.Subscribe(16)
	defer sub.Cancel()

	go func() {
		for event := range sub.C {
			fmt.Printf("host %s changed at %s\n", event.Host, event.Timestamp)
		}
	}()

Notifier implements engine.EventSink, so it is handed to the engine
directly:

	eng := engine.New(engine.Config{Events: notifier, ...})
*/
package events
