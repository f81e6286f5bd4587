package scanner

import (
	"context"
	"time"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/internal/storage"
)

// Selector picks the tokens due for a rescan. It holds no state between
// calls; eligibility is evaluated against the store every time.
type Selector struct {
	store storage.Storage
	cfg   *config.ScannerConfig
	now   func() time.Time
}

// NewSelector creates a rescan selector
func NewSelector(store storage.Storage, cfg *config.ScannerConfig) *Selector {
	return &Selector{
		store: store,
		cfg:   cfg,
		// UTC keeps stored timestamps comparable across backends
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DueTokens returns tokens eligible for rescan, oldest first. A token is
// excluded once it reaches the failure limit or the scan cap, or when its
// last scan is more recent than the minimum rescan age.
func (s *Selector) DueTokens(ctx context.Context) ([]*models.RescanCandidate, error) {
	return s.store.SelectDue(ctx, s.now(),
		s.cfg.HoneypotFailureLimit, s.cfg.MaxScans, s.cfg.MinRescanAge)
}
