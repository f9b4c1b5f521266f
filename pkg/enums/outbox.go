package enums

// OutboxAggregateType names the entity an outbox event belongs to. It is
// also the Kafka message key prefix.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateUserRank OutboxAggregateType = "user_rank"
	AggregateCoupon   OutboxAggregateType = "coupon"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateUserRank, AggregateCoupon}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return parse("aggregate type", raw, aggregateTypes)
}

// OutboxEventType names a domain event relayed to Kafka.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderPaid          OutboxEventType = "order_paid"
	EventOrderPaymentFailed OutboxEventType = "order_payment_failed"
	EventSpinCompleted      OutboxEventType = "spin_completed"
	EventVouchersExpired    OutboxEventType = "vouchers_expired"
)

var eventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventSpinCompleted,
	EventVouchersExpired,
}

func (e OutboxEventType) IsValid() bool { return known(e, eventTypes) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parse("event type", raw, eventTypes)
}
