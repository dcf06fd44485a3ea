// Package notify delivers consultation notifications to patients and doctors.
// Delivery is fire-and-forget: a failed send is logged and never reported to
// the operation that triggered it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is a single notification addressed to one recipient.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier sends one message synchronously.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Dispatcher sends messages in the background with its own timeout so a slow
// or failing transport never blocks or fails the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout}
}

// Dispatch queues msg for delivery and returns immediately. Cancellation of
// ctx does not abort the send.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if msg.To == "" {
		log.Warn().Str("subject", msg.Subject).Msg("notification skipped: no recipient address")
		return
	}

	sendCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, msg); err != nil {
			log.Error().Err(err).
				Str("to", msg.To).
				Str("subject", msg.Subject).
				Msg("notification delivery failed")
			return
		}
		log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification delivered")
	}()
}

// Wait blocks until every dispatched message has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogNotifier only records messages in the log. Used in development.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification")
	return nil
}
