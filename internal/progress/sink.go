package progress

import "context"

// Sink receives batches of crawl milestone events from the hub.
// Implementations must tolerate repeated Consume calls, respect ctx
// deadlines, and be safe under concurrent delivery.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes single events. The Hub satisfies it, keeping the
// coordinator and orchestrator unaware of buffering and fan-out.
type Emitter interface {
	Emit(evt Event)
}
