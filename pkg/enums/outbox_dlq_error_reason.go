package enums

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUnroutable marks rows the publisher can never send: an
	// unknown event type, a wrong aggregate, or an undecodable envelope.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
	// OutboxDLQReasonMaxAttempts marks rows Kafka kept refusing.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonUnroutable, OutboxDLQReasonMaxAttempts}

func (r OutboxDLQErrorReason) IsValid() bool { return known(r, dlqReasons) }

func ParseOutboxDLQErrorReason(raw string) (OutboxDLQErrorReason, error) {
	return parse("dlq reason", raw, dlqReasons)
}
