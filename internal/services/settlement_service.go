package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lotbid/internal/domain"
	"lotbid/internal/pricing"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"
)

// SettlementService determines the final disposition of ended lots. The
// batch is leader-gated so only one instance settles, and idempotent: an
// already-archived lot is a no-op.
type SettlementService struct {
	lotRepo        domain.LotRepository
	bidRepo        domain.BidRepository
	bandRepo       domain.IncrementBandRepository
	passedRepo     domain.PassedLotRepository
	locker         domain.LotLocker
	eventPub       domain.EventPublisher
	stateCache     domain.LotStateCache
	leaderElection domain.LeaderElection
	instanceID     string
	now            func() time.Time
	log            logger.Logger
}

func NewSettlementService(
	lotRepo domain.LotRepository,
	bidRepo domain.BidRepository,
	bandRepo domain.IncrementBandRepository,
	passedRepo domain.PassedLotRepository,
	locker domain.LotLocker,
	eventPub domain.EventPublisher,
	stateCache domain.LotStateCache,
	leaderElection domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *SettlementService {
	return &SettlementService{
		lotRepo:        lotRepo,
		bidRepo:        bidRepo,
		bandRepo:       bandRepo,
		passedRepo:     passedRepo,
		locker:         locker,
		eventPub:       eventPub,
		stateCache:     stateCache,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		now:            time.Now,
		log:            log,
	}
}

// SettleEndedLots settles every ACTIVE lot in the store whose auction window
// has closed. Per-lot failures are logged and skipped; one bad lot must not
// block settlement of the rest.
func (s *SettlementService) SettleEndedLots(ctx context.Context, storeID string) error {
	if s.leaderElection != nil {
		isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
		if err != nil || !isLeader {
			return err
		}
	}

	lots, err := s.lotRepo.GetEndedActiveLots(ctx, storeID, s.now())
	if err != nil {
		return err
	}

	for _, lot := range lots {
		if err := s.settleLot(ctx, lot); err != nil {
			s.log.Error("Failed to settle lot", "lot_id", lot.ID, "error", err)
		}
	}
	return nil
}

// SettleLot settles a single lot by id, invoked by the scheduler when the
// lot's close job fires.
func (s *SettlementService) SettleLot(ctx context.Context, lotID string) error {
	if s.leaderElection != nil {
		isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
		if err != nil || !isLeader {
			return err
		}
	}

	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	return s.settleLot(ctx, lot)
}

func (s *SettlementService) settleLot(ctx context.Context, lot *domain.Lot) error {
	release, err := s.locker.Acquire(ctx, lot.ID)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under the lock: a concurrent bid or an earlier settlement run
	// may have moved the lot since the batch query.
	lot, err = s.lotRepo.GetLot(ctx, lot.ID)
	if err != nil {
		return err
	}
	if lot.Status != domain.LotActive {
		return nil
	}
	now := s.now()
	if now.Before(lot.EndDatetime) {
		// Soft close pushed the window out after the batch query.
		return nil
	}

	bids, err := s.bidRepo.GetVisibleBids(ctx, lot.ID)
	if err != nil {
		return err
	}
	bands, err := s.bandRepo.GetBands(ctx, lot.StoreID)
	if err != nil {
		return err
	}

	// Final resolution from the full visible bid set, no bid in flight.
	result := pricing.Resolve(pricing.Input{
		StartingPrice: lot.StartingPrice,
		ReservePrice:  lot.ReservePrice,
		Bids:          bids,
		Increments:    pricing.NewTable(bands),
	})

	sold := len(bids) > 0 && result.ReserveMet

	lot.Status = domain.LotArchived
	lot.CurrentBid = result.Price
	lot.ReserveMet = result.ReserveMet
	lot.UpdatedAt = now
	if sold {
		lot.Disposition = domain.DispositionSold
		lot.WinningBidCustomerID = result.WinnerCustomerID
	} else {
		lot.Disposition = domain.DispositionPassed
		// Unmet reserve: the provisional winner does not survive settlement.
		lot.WinningBidCustomerID = ""
	}

	if err := s.lotRepo.ArchiveLot(ctx, lot); err != nil {
		return err
	}

	if s.stateCache != nil {
		if err := s.stateCache.SetLotStatus(ctx, lot.ID, lot.Status); err != nil {
			s.log.Error("Failed to update lot status cache", "lot_id", lot.ID, "error", err)
		}
	}

	if !sold {
		record := &domain.PassedLotRecord{
			ID:           utils.GenerateID("passed"),
			LotID:        lot.ID,
			StoreID:      lot.StoreID,
			HighestBid:   highestVisibleBid(bids),
			ReservePrice: lot.ReservePrice,
			CreatedAt:    now,
		}
		if err := s.passedRepo.CreateRecord(ctx, record); err != nil {
			return err
		}
	}

	if err := s.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
		Type:       domain.LotSettled,
		LotID:      lot.ID,
		CustomerID: lot.WinningBidCustomerID,
		Amount:     lot.CurrentBid,
		Sold:       sold,
		Timestamp:  now,
	}); err != nil {
		s.log.Error("Failed to publish settlement event", "lot_id", lot.ID, "error", err)
	}

	s.log.Info("Lot settled", "lot_id", lot.ID, "disposition", string(lot.Disposition),
		"final_price", lot.CurrentBid.String(), "winner", lot.WinningBidCustomerID)
	return nil
}

func highestVisibleBid(bids []*domain.Bid) decimal.Decimal {
	highest := decimal.Zero
	for _, bid := range bids {
		if bid.IsHidden {
			continue
		}
		if bid.Amount.GreaterThan(highest) {
			highest = bid.Amount
		}
	}
	return highest
}
