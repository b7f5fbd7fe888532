package ingest

import (
	"context"
	"log"
	"time"

	"tremor-monitor-backend/internal/model"
	"tremor-monitor-backend/internal/store"
)

// RecordWriter is the slice of the store the persist pool needs. Narrowed to
// an interface so tests can inject failing or counting writers.
type RecordWriter interface {
	InsertAnalysisRecord(ctx context.Context, record *model.AnalysisRecord) error
}

// PersistPool writes analysis records on a pool of workers with bounded
// retries. Persistence is fire-and-forget from the ingest path: a full queue
// or a failed window never blocks or crashes ingestion of later samples.
type PersistPool struct {
	size        int
	jobs        chan *model.AnalysisRecord
	writer      RecordWriter
	maxAttempts int
	baseBackoff time.Duration
}

// NewPersistPool creates a persist pool of the given size.
func NewPersistPool(size, maxAttempts int, writer RecordWriter) *PersistPool {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &PersistPool{
		size:        size,
		jobs:        make(chan *model.AnalysisRecord, size*16),
		writer:      writer,
		maxAttempts: maxAttempts,
		baseBackoff: 100 * time.Millisecond,
	}
}

// Start launches the worker goroutines.
func (p *PersistPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

// Dispatch queues a record for persistence. When the queue is full the
// record is dropped with a log line rather than blocking the flusher.
func (p *PersistPool) Dispatch(record *model.AnalysisRecord) bool {
	select {
	case p.jobs <- record:
		return true
	default:
		log.Printf("persist queue full, dropping analysis window ending %s for patient %s",
			record.WindowEnd.Format(time.RFC3339), record.PatientID)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (p *PersistPool) Jobs() chan *model.AnalysisRecord {
	return p.jobs
}

func (p *PersistPool) worker(ctx context.Context, id int) {
	log.Printf("persist worker %d started", id)
	for {
		select {
		case record := <-p.jobs:
			p.persist(ctx, record)
		case <-ctx.Done():
			log.Printf("persist worker %d shutting down", id)
			return
		}
	}
}

// persist retries transient storage errors with exponential backoff. When
// attempts are exhausted the window is dropped; later windows are unaffected.
func (p *PersistPool) persist(ctx context.Context, record *model.AnalysisRecord) {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.writer.InsertAnalysisRecord(ctx, record); err == nil {
			return
		}
		if attempt < p.maxAttempts {
			backoff := p.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}
	log.Printf("dropping analysis window ending %s for device %s after %d attempts: %v",
		record.WindowEnd.Format(time.RFC3339), record.DeviceID, p.maxAttempts, err)
}

var _ RecordWriter = store.Store(nil)
