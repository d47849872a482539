package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/wardsim/internal/metrics"
	"github.com/ajitpratap0/wardsim/internal/models"
)

const (
	// DefaultBufferSize is the number of event batches queued before new ones are dropped.
	DefaultBufferSize = 256

	// DefaultWriteTimeout bounds one sink write.
	DefaultWriteTimeout = 5 * time.Second
)

// Record is the wire form of an event published to sinks.
type Record struct {
	RunID string      `json:"run_id"`
	Mode  models.Mode `json:"mode"`
	models.Event
}

// Sink publishes activity records to an external system.
type Sink interface {
	Name() string
	Write(ctx context.Context, recs []Record) error
	Close() error
}

// Dispatcher delivers event batches to sinks on its own goroutine so that a
// slow or unreachable sink never blocks the simulation. Batches that do not
// fit in the buffer are dropped and counted.
type Dispatcher struct {
	sinks   []Sink
	ch      chan models.EventBatch
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher over sinks.
func NewDispatcher(sinks []Sink, buffer int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	d := &Dispatcher{
		sinks:   sinks,
		ch:      make(chan models.EventBatch, buffer),
		timeout: timeout,
		logger:  logger,
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// OnEvents queues a batch without blocking. Batches arriving after Close are
// discarded.
func (d *Dispatcher) OnEvents(b models.EventBatch) {
	if len(d.sinks) == 0 || len(b.Events) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- b:
	default:
		metrics.Add(metrics.EventsDropped, len(b.Events))
		d.logger.Warn("activity buffer full, dropping events", "count", len(b.Events))
	}
}

// OnTick is a no-op; sinks receive events only.
func (d *Dispatcher) OnTick(models.TickMetrics) {}

// Close drains queued batches and closes every sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	d.wg.Wait()
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for b := range d.ch {
		recs := make([]Record, 0, len(b.Events))
		for _, e := range b.Events {
			recs = append(recs, Record{RunID: b.RunID, Mode: b.Mode, Event: e})
		}
		// Sinks are written in parallel; a failing sink does not cancel the others.
		var g errgroup.Group
		for _, s := range d.sinks {
			g.Go(func() error {
				d.write(s, recs)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (d *Dispatcher) write(s Sink, recs []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := s.Write(ctx, recs); err != nil {
		metrics.Inc(metrics.SinkErrors)
		d.logger.Warn("activity sink write failed", "sink", s.Name(), "error", err)
		return
	}
	metrics.Add(metrics.EventsPublished, len(recs))
}
