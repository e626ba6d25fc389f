package photos

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/metrics"
)

// adoptGrace keeps reconciliation away from objects whose upload may still
// be waiting for its row.
const adoptGrace = 10 * time.Minute

// ReconcileResult counts the repairs made by Reconcile.
type ReconcileResult struct {
	Removed int `json:"removed"`
	Adopted int `json:"adopted"`
}

// Reconcile repairs drift between Drive and the metadata store: rows whose
// object is gone are removed, and objects with no row are recorded as
// unsorted. Rows are read before Drive is listed so that an upload finishing
// mid-sweep is never mistaken for a missing object.
func (s *Service) Reconcile(ctx context.Context, userID string) (res *ReconcileResult, err error) {
	defer func() { metrics.RecordOperation("reconcile", err) }()
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	objects, err := s.storage.List(ctx, tok, userID)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(objects))
	for _, o := range objects {
		present[o.ID] = true
	}
	known := make(map[string]bool, len(rows))
	var stale []string
	for _, r := range rows {
		known[r.PhotoID] = true
		if !present[r.PhotoID] {
			stale = append(stale, r.PhotoID)
		}
	}

	cutoff := s.opts.Now().Add(-adoptGrace)
	var adopt []models.Photo
	for i := range objects {
		o := &objects[i]
		if known[o.ID] || o.CreatedTime.After(cutoff) {
			continue
		}
		adopt = append(adopt, s.rowFromObject(userID, o))
	}

	res = &ReconcileResult{}
	if len(stale) > 0 {
		n, err := s.store.Delete(ctx, userID, stale)
		if err != nil {
			return nil, err
		}
		res.Removed = int(n)
	}
	if len(adopt) > 0 {
		if err := s.store.InsertMany(ctx, adopt); err != nil {
			return nil, err
		}
		res.Adopted = len(adopt)
	}
	metrics.AddItems("reconcile", "removed", res.Removed)
	metrics.AddItems("reconcile", "adopted", res.Adopted)
	if res.Removed > 0 || res.Adopted > 0 {
		log.Info().Str("user_id", userID).Int("removed", res.Removed).Int("adopted", res.Adopted).Msg("reconciled photo metadata")
	}
	return res, nil
}

// StartReconcileLoop reconciles every connected user on interval until ctx
// is done. Users who need to reconnect are skipped quietly.
func (s *Service) StartReconcileLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcileAll(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("photo reconcile loop started")
}

func (s *Service) reconcileAll(ctx context.Context) {
	users, err := s.tokens.ConnectedUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list connected users")
		return
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Reconcile(ctx, userID); err != nil {
			if needsReauth(err) {
				log.Debug().Str("user_id", userID).Msg("skipping reconcile, reconnect required")
				continue
			}
			log.Warn().Err(err).Str("user_id", userID).Msg("reconcile failed")
		}
	}
}

func needsReauth(err error) bool {
	return apperror.HasCode(err, apperror.CodeNotConnected) ||
		apperror.HasCode(err, apperror.CodeReauthRequired) ||
		apperror.HasCode(err, apperror.CodeTokenRefreshFailed) ||
		apperror.HasCode(err, apperror.CodeStorageAuth)
}
