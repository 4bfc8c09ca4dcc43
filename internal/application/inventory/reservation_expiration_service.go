package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultExpirationBatchSize is the number of reservations loaded per sweep batch
const DefaultExpirationBatchSize = 100

// ReservationExpirationService expires ACTIVE reservations whose deadline has passed
type ReservationExpirationService struct {
	txScope      TransactionScope
	cache        AvailabilityCache
	clock        shared.Clock
	batchSize    int
	logger       *zap.Logger
	stockMetrics *telemetry.StockMetrics
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(txScope TransactionScope, logger *zap.Logger) *ReservationExpirationService {
	return &ReservationExpirationService{
		txScope:   txScope,
		clock:     shared.SystemClock{},
		batchSize: DefaultExpirationBatchSize,
		logger:    logger,
	}
}

// SetClock replaces the clock the sweep compares deadlines against
func (s *ReservationExpirationService) SetClock(clock shared.Clock) {
	s.clock = clock
}

// SetBatchSize sets how many reservations are loaded per batch
func (s *ReservationExpirationService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetCache sets the availability cache invalidated for expired keys
func (s *ReservationExpirationService) SetCache(cache AvailabilityCache) {
	s.cache = cache
}

// SetStockMetrics sets the stock metrics collector
func (s *ReservationExpirationService) SetStockMetrics(sm *telemetry.StockMetrics) {
	s.stockMetrics = sm
}

// ExpirationStats contains statistics about one sweep
type ExpirationStats struct {
	Found       int           `json:"found"`
	Expired     int           `json:"expired"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// ExpireDue expires every ACTIVE reservation past its deadline.
// Reservations that are no longer ACTIVE when reloaded, or that another writer
// changed concurrently, are skipped rather than reported as failures, so running
// the sweep twice is harmless.
func (s *ReservationExpirationService) ExpireDue(ctx context.Context) (*ExpirationStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation_expiration", "expire_due")
	defer span.End()

	start := time.Now()
	now := s.clock.Now()
	stats := &ExpirationStats{ProcessedAt: now}
	keys := make(map[inventory.StockKey]struct{})
	// Rows left ACTIVE after an attempt are paged past so they cannot starve later ones
	var passed []uuid.UUID

	for {
		var due []*inventory.StockReservation
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			due, err = repos.Reservations().FindActiveExpiredBefore(ctx, now, passed, s.batchSize)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to find expired reservations", zap.Error(err))
			telemetry.RecordError(span, err)
			return nil, err
		}
		stats.Found += len(due)

		for _, r := range due {
			expired, err := s.expireOne(ctx, r.ID, now)
			switch {
			case err != nil:
				s.logger.Error("Failed to expire reservation",
					zap.String("reservation_id", r.ID.String()),
					zap.Error(err),
				)
				stats.Failed++
				passed = append(passed, r.ID)
			case expired:
				stats.Expired++
				keys[inventory.StockKey{LocationID: r.LocationID, ProductID: r.ProductID}] = struct{}{}
			default:
				stats.Skipped++
				passed = append(passed, r.ID)
			}
		}

		if len(due) < s.batchSize {
			break
		}
	}

	s.invalidate(ctx, keys)
	stats.Duration = time.Since(start)
	if s.stockMetrics != nil {
		s.stockMetrics.RecordSweep(ctx, stats.Expired, stats.Duration)
	}

	telemetry.SetAttributes(span, "found", stats.Found, "expired", stats.Expired, "skipped", stats.Skipped)
	telemetry.SetOK(span)
	if stats.Found > 0 {
		s.logger.Info("Completed reservation expiry sweep",
			zap.Int("found", stats.Found),
			zap.Int("expired", stats.Expired),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
			zap.Duration("duration", stats.Duration),
		)
	} else {
		s.logger.Debug("No expired reservations found")
	}
	return stats, nil
}

// expireOne reloads and expires a single reservation in its own transaction.
// Returns false without error when there was nothing to do.
func (s *ReservationExpirationService) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	expired := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !r.IsActive() || !r.IsExpiredAt(now) {
			return nil
		}
		if err := r.MarkAsExpired(now); err != nil {
			return err
		}
		if err := repos.Reservations().SaveWithLock(ctx, r); err != nil {
			return err
		}
		if err := repos.SaveEvents(ctx, r.PullDomainEvents()...); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if errors.Is(err, shared.ErrOptimisticLock) || errors.Is(err, shared.ErrNotFound) {
		s.logger.Debug("Reservation changed concurrently, skipping",
			zap.String("reservation_id", id.String()),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (s *ReservationExpirationService) invalidate(ctx context.Context, keys map[inventory.StockKey]struct{}) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	list := make([]inventory.StockKey, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	if err := s.cache.Invalidate(ctx, list...); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}
