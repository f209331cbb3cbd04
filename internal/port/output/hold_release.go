package output

// HoldReleaseQueue is an output port (secondary port) for deferring the
// release of provider-side authorization holds after a zero-settlement
// capture. Secondary adapters (RabbitMQ implementations) will implement this
type HoldReleaseQueue interface {
	// PublishHoldRelease enqueues a hold-release request for a payment
	PublishHoldRelease(localOrderRef string) error
	// Close closes the messaging connection
	Close() error
}
