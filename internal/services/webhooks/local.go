package webhooks

import (
	"context"
	"sync"

	"github.com/BearBump/ShipRecon/internal/broker/messages"
)

// Local reconciles in a detached goroutine of the receiving process.
type Local struct {
	proc Processor
	wg   sync.WaitGroup
}

func NewLocal(proc Processor) *Local {
	return &Local{proc: proc}
}

func (l *Local) Handoff(ctx context.Context, msg messages.WebhookReceived) error {
	// the request context ends with the response
	bg := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		Process(bg, l.proc, msg)
	}()
	return nil
}

// Wait blocks until every handed-off delivery has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}
