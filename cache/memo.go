package cache

import (
	"context"
	"errors"

	"github.com/RyanBlaney/sonido-clave/fingerprint"
	"github.com/RyanBlaney/sonido-clave/keyfinder"
	"github.com/RyanBlaney/sonido-clave/logging"
)

// AnalyzeFunc produces an estimate for a track on a cache miss.
type AnalyzeFunc func(ctx context.Context) (*keyfinder.KeyEstimate, error)

// Memo serves estimates from a Store for one analysis configuration.
type Memo struct {
	store  *Store
	digest string
	logger logging.Logger
}

// NewMemo binds store to the configuration identified by digest
// (config.Config.Digest).
func NewMemo(store *Store, digest string) *Memo {
	return &Memo{
		store:  store,
		digest: digest,
		logger: logging.WithFields(logging.Fields{
			"component": "estimate_cache",
			"digest":    digest,
		}),
	}
}

// Estimate returns the cached estimate for fp or runs analyze and stores its
// result. hit reports whether the cache answered. Cache read and write
// failures are logged and never fail the call; analysis errors are returned
// and not cached.
func (m *Memo) Estimate(ctx context.Context, fp fingerprint.Fingerprint, source string, analyze AnalyzeFunc) (est *keyfinder.KeyEstimate, hit bool, err error) {
	entry, err := m.store.Get(ctx, fp, m.digest)
	switch {
	case err == nil:
		m.logger.Debug("Cache hit", logging.Fields{
			"fingerprint": fp.Short(),
			"source":      source,
		})
		return entry.Estimate, true, nil
	case !errors.Is(err, ErrNotFound):
		m.logger.Warn("Cache read failed", logging.Fields{
			"fingerprint": fp.Short(),
			"error":       err.Error(),
		})
	}

	est, err = analyze(ctx)
	if err != nil {
		return nil, false, err
	}

	if _, err := m.store.Put(ctx, fp, m.digest, source, est); err != nil {
		m.logger.Warn("Cache write failed", logging.Fields{
			"fingerprint": fp.Short(),
			"error":       err.Error(),
		})
	}
	return est, false, nil
}
