package retention

import (
	"context"
	"log"
	"time"

	"tremor-monitor-backend/internal/store"
)

// Purger periodically deletes analysis records past their retention expiry.
// Sessions are deliberately never purged; they are kept for audit.
type Purger struct {
	store    store.Store
	interval time.Duration
	now      func() time.Time
}

// NewPurger creates a purger running at the given interval.
func NewPurger(s store.Store, interval time.Duration) *Purger {
	return &Purger{store: s, interval: interval, now: time.Now}
}

// Run purges once immediately, then on every tick until the context is
// cancelled.
func (p *Purger) Run(ctx context.Context) {
	log.Println("Starting retention purger...")
	p.PurgeOnce(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention purger shutting down.")
			return
		case <-timer.C:
			p.PurgeOnce(ctx)
			timer.Reset(p.interval)
		}
	}
}

// PurgeOnce performs a single purge pass.
func (p *Purger) PurgeOnce(ctx context.Context) {
	purged, err := p.store.PurgeExpired(ctx, p.now().UTC())
	if err != nil {
		log.Printf("Error purging expired analysis records: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Purged %d expired analysis records", purged)
	}
}
