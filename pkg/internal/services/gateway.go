package services

// The realtime singletons. One registry shared by the webhook handler and
// every websocket gateway; the processor and the tracker both fan out
// through the same dispatcher.
var (
	Registry   *ChannelRegistry
	Streams    *Dispatcher
	Presence   *PresenceTracker
	CallEvents *CallEventProcessor
)

func SetupGateway() {
	Registry = NewChannelRegistry()
	Streams = NewDispatcher(Registry)
	Presence = NewPresenceTracker(Streams)
	CallEvents = NewCallEventProcessor(NewGormCallStore(), Streams)
}
