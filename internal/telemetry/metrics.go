package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/event"
)

var (
	depositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triviapot_deposits_total",
		Help: "Entry fees accepted into escrow.",
	})

	refundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triviapot_refunds_total",
		Help: "Entry fees returned to depositors.",
	})

	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triviapot_answers_total",
		Help: "Submitted answers by correctness.",
	}, []string{"correct"})

	distributionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triviapot_distributions_total",
		Help: "Prize distributions paid out.",
	})
)

// CountEvents feeds the prometheus counters from the event bus.
func CountEvents(eb *event.Bus) {
	eb.Subscribe(domain.EventNameFeeDeposited, func(context.Context, event.Event) error {
		depositsTotal.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameFeeRefunded, func(context.Context, event.Event) error {
		refundsTotal.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameAnswerSubmitted, func(_ context.Context, e event.Event) error {
		if e.(domain.EventAnswerSubmitted).Correct {
			answersTotal.WithLabelValues("true").Inc()
		} else {
			answersTotal.WithLabelValues("false").Inc()
		}
		return nil
	})
	eb.Subscribe(domain.EventNameRewardDistributed, func(context.Context, event.Event) error {
		distributionsTotal.Inc()
		return nil
	})
}
