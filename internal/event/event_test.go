package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviapot/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber only receives the event it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("fee.deposited"),
						eventWithName("answer.submitted"),
					},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []string{"fee.deposited"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("fee.deposited")}, out.received["s1"])
			},
		},

		"every publish of a name reaches the subscriber once": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("round.advanced"),
						eventWithName("round.advanced"),
						eventWithName("round.advanced"),
					},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []string{"round.advanced"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Len(t, out.received["s1"], 3)
			},
		},

		"an event fans out to all its subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("winners.declared"),
					},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []string{"winners.declared"}},
						{name: "s2", subscribeTo: []string{"winners.declared"}},
						{name: "s3", subscribeTo: []string{"fee.deposited"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("winners.declared")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("winners.declared")}, out.received["s2"])
				assert.Empty(t, out.received["s3"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				s := s
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(2))

	var (
		mu    sync.Mutex
		calls int
	)

	b.Subscribe("e", func(context.Context, event.Event) error {
		return errors.New("boom")
	})
	b.Subscribe("e", func(context.Context, event.Event) error {
		panic("boom")
	})
	b.Subscribe("e", func(context.Context, event.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), eventWithName("e"))
	b.Publish(context.Background(), eventWithName("e"))
	b.Stop()

	require.Equal(t, 2, calls, "healthy handler should receive every publish")
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
