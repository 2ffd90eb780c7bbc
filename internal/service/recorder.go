package service

import (
	"context"
	"log"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
)

// decisionLogStore is the durable side of the recorder
type decisionLogStore interface {
	CreateBatch(ctx context.Context, logs []*models.RequestLog) error
	DeleteOldLogs(ctx context.Context, before time.Time) (int64, error)
}

// DecisionRecorder persists admission decisions to the durable log in
// batches, off the request path. A full buffer drops entries rather than
// blocking a verdict. The same worker sweeps out logs older than the
// retention period.
type DecisionRecorder struct {
	store         decisionLogStore
	entries       chan models.RequestLog
	done          chan struct{}
	retentionDays int
	sweepEvery    time.Duration
}

func NewDecisionRecorder(store decisionLogStore, bufferSize, retentionDays int) *DecisionRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}

	return &DecisionRecorder{
		store:         store,
		entries:       make(chan models.RequestLog, bufferSize),
		done:          make(chan struct{}),
		retentionDays: retentionDays,
		sweepEvery:    time.Hour,
	}
}

// Start launches the background worker that batch inserts decisions and
// prunes expired ones.
func (r *DecisionRecorder) Start() {
	go func() {
		defer close(r.done)

		batch := make([]*models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		sweeper := time.NewTicker(r.sweepEvery)
		defer sweeper.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := r.store.CreateBatch(ctx, batch); err != nil {
				log.Printf("recorder: failed to insert %d decisions: %v", len(batch), err)
			}
			cancel()
			batch = make([]*models.RequestLog, 0, 100)
		}

		for {
			select {
			case entry, ok := <-r.entries:
				if !ok {
					flush()
					return
				}
				entryCopy := entry
				batch = append(batch, &entryCopy)
				if len(batch) >= 100 {
					flush()
				}
			case <-ticker.C:
				flush()
			case <-sweeper.C:
				r.sweep()
			}
		}
	}()
}

// Record queues one decision. Never blocks - a full buffer loses the entry.
func (r *DecisionRecorder) Record(entry models.RequestLog) {
	select {
	case r.entries <- entry:
	default:
		log.Println("recorder: buffer full, dropping decision log entry")
	}
}

// Stop flushes pending entries and waits for the worker to exit
func (r *DecisionRecorder) Stop() {
	close(r.entries)
	<-r.done
}

func (r *DecisionRecorder) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -r.retentionDays)
	deleted, err := r.store.DeleteOldLogs(ctx, cutoff)
	if err != nil {
		log.Printf("recorder: retention sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("recorder: retention sweep deleted %d decision logs", deleted)
	}
}
