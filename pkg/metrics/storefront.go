package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts business outcomes: placed orders, wheel results and
// relayed outbox events.
type DomainMetrics struct {
	orders *prometheus.CounterVec
	spins  *prometheus.CounterVec
	outbox *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created by payment method.",
	}, []string{"payment_method"})
	spins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wheel_spins_total",
		Help:      "Reward wheel outcomes by segment name.",
	}, []string{"reward"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox relay results by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(orders, spins, outbox)
	return &DomainMetrics{orders: orders, spins: spins, outbox: outbox}
}

func (m *DomainMetrics) OrderCreated(paymentMethod string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(label(paymentMethod)).Inc()
}

func (m *DomainMetrics) SpinResolved(reward string) {
	if m == nil || m.spins == nil {
		return
	}
	m.spins.WithLabelValues(label(reward)).Inc()
}

// OutboxResult records "published", "retry" or "dead_letter" for an event.
func (m *DomainMetrics) OutboxResult(eventType, result string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(label(eventType), label(result)).Inc()
}
