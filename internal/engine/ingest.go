package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sigfuse/internal/model"
)

// ErrIngestorClosed is returned by Submit after Close or after Run returned.
var ErrIngestorClosed = errors.New("ingestor closed")

// Outcome reports the result of one applied Request.
// Exactly one of ID, Result or Evicted is meaningful, depending on Kind.
type Outcome struct {
	Request Request
	ID      string
	Result  *model.FusionResult
	Evicted []string
	Err     error
}

// Ingestor serializes engine operations submitted from many goroutines.
//
// Submit may be called concurrently. Run must be called from exactly one
// goroutine and is then the only writer to the wrapped Engine; the caller
// must not touch the Engine until Run returns.
type Ingestor struct {
	engine   *Engine
	queue    *requestQueue
	onResult func(Outcome)
}

// NewIngestor wraps e. onResult, if non-nil, is called from the Run
// goroutine after every applied request.
func NewIngestor(e *Engine, onResult func(Outcome)) *Ingestor {
	return &Ingestor{
		engine:   e,
		queue:    newRequestQueue(),
		onResult: onResult,
	}
}

// Submit enqueues a request. Never blocks.
func (in *Ingestor) Submit(r Request) error {
	if !in.queue.Enqueue(r) {
		return ErrIngestorClosed
	}
	return nil
}

// Pending returns the number of requests not yet applied.
func (in *Ingestor) Pending() int {
	return in.queue.Len()
}

// Close stops accepting requests. Run drains what is already queued and
// returns nil.
func (in *Ingestor) Close() {
	in.queue.Close()
}

// Run applies queued requests in FIFO order until the queue is closed and
// drained (returns nil) or ctx is cancelled (returns ctx.Err()).
//
// A request that fails is reported through the callback and logged; later
// requests still run.
func (in *Ingestor) Run(ctx context.Context) error {
	logger := in.engine.logger
	logger.Info("ingestor starting")

	for {
		if r, ok := in.queue.TryDequeue(); ok {
			out := in.apply(r)
			if out.Err != nil {
				logger.Warn("request rejected",
					"kind", r.Kind.String(),
					"error", out.Err,
				)
			}
			if in.onResult != nil {
				in.onResult(out)
			}
			continue
		}

		select {
		case <-ctx.Done():
			logger.Info("ingestor stopping: context cancelled")
			in.queue.Close()
			return ctx.Err()

		case <-in.queue.Wait():
			// The signal channel is closed with the queue, so this also
			// fires on Close.
			if in.queue.Len() == 0 && in.closed() {
				logger.Info("ingestor stopping: queue closed")
				return nil
			}
		}
	}
}

func (in *Ingestor) closed() bool {
	in.queue.mu.Lock()
	defer in.queue.mu.Unlock()
	return in.queue.closed
}

// apply runs one request against the engine.
// Called only from Run.
func (in *Ingestor) apply(r Request) Outcome {
	out := Outcome{Request: r}
	switch r.Kind {
	case RequestAdd:
		out.ID, out.Err = in.engine.AddSignal(r.Signal)
	case RequestFuse:
		res := in.engine.Fuse()
		out.Result = &res
	case RequestEvictOlderThan:
		if r.MaxAge < 0 {
			out.Err = fmt.Errorf("%w: negative max age %s", ErrInvalidInput, r.MaxAge)
			break
		}
		out.Evicted = in.engine.EvictOlderThan(r.MaxAge)
	case RequestEvictToCapacity:
		if r.Capacity < 0 {
			out.Err = fmt.Errorf("%w: negative capacity %d", ErrInvalidInput, r.Capacity)
			break
		}
		out.Evicted = in.engine.EvictToCapacity(r.Capacity)
	default:
		out.Err = fmt.Errorf("unknown request kind: %d", r.Kind)
	}
	return out
}
