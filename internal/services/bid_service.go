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

// BidService gates every bid mutation on a lot. All state-changing paths run
// the same read-resolve-validate-write sequence under the per-lot lock.
type BidService struct {
	lotRepo     domain.LotRepository
	bidRepo     domain.BidRepository
	historyRepo domain.BidHistoryRepository
	bandRepo    domain.IncrementBandRepository
	ledger      domain.ResolutionLedger
	stateCache  domain.LotStateCache
	locker      domain.LotLocker
	eventPub    domain.EventPublisher
	scheduler   domain.LotScheduler
	softClose   time.Duration
	now         func() time.Time
	log         logger.Logger
}

func NewBidService(
	lotRepo domain.LotRepository,
	bidRepo domain.BidRepository,
	historyRepo domain.BidHistoryRepository,
	bandRepo domain.IncrementBandRepository,
	ledger domain.ResolutionLedger,
	stateCache domain.LotStateCache,
	locker domain.LotLocker,
	eventPub domain.EventPublisher,
	scheduler domain.LotScheduler,
	softClose time.Duration,
	log logger.Logger,
) *BidService {
	return &BidService{
		lotRepo:     lotRepo,
		bidRepo:     bidRepo,
		historyRepo: historyRepo,
		bandRepo:    bandRepo,
		ledger:      ledger,
		stateCache:  stateCache,
		locker:      locker,
		eventPub:    eventPub,
		scheduler:   scheduler,
		softClose:   softClose,
		now:         time.Now,
		log:         log,
	}
}

// BidReceipt is what an accepted bid hands back to the caller: the stored
// bid id and the resolution computed under the lot lock, so responses never
// re-read state a concurrent bid may have moved.
type BidReceipt struct {
	BidID  string
	Result pricing.Result
}

// PlaceBid validates and records one bid attempt. On acceptance it re-runs
// the resolver with the new bid folded in, then commits the bid row, the
// lot's refreshed cached state, and the history append in one transaction,
// publishes the resolved price, and pushes the close out when the bid lands
// inside the soft-close window.
func (s *BidService) PlaceBid(ctx context.Context, lotID, customerID string, amount decimal.Decimal, bidType domain.BidType) (*BidReceipt, error) {
	if !bidType.Valid() {
		return nil, domain.NewValidationError(domain.ReasonInvalidBidType, "unknown bid type %q", bidType)
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError(domain.ReasonInvalidAmount, "bid amount must be positive, got %s", amount)
	}

	// Cheap status gate from the cache before paying for the lock. A miss
	// or a cache error falls through to the authoritative check below.
	if s.stateCache != nil {
		if status, found, err := s.stateCache.GetLotStatus(ctx, lotID); err == nil && found && status != domain.LotActive {
			return nil, domain.NewValidationError(domain.ReasonLotNotActive, "lot %s is %s", lotID, status)
		}
	}

	release, err := s.locker.Acquire(ctx, lotID)
	if err != nil {
		return nil, err
	}
	defer release()

	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if lot.Status != domain.LotActive {
		return nil, domain.NewValidationError(domain.ReasonLotNotActive, "lot %s is %s", lotID, lot.Status)
	}
	if !lot.WindowContains(now) {
		return nil, domain.NewValidationError(domain.ReasonOutOfWindow, "lot %s auction window is closed", lotID)
	}
	if customerID == lot.OwnerCustomerID {
		return nil, domain.NewValidationError(domain.ReasonSelfBid, "owner cannot bid on own lot")
	}

	table, err := s.incrementTable(ctx, lot.StoreID)
	if err != nil {
		return nil, err
	}

	minimum := lot.StartingPrice
	if lot.IsBidPlaced {
		minimum = table.MinimumStep(lot.CurrentBid)
	}
	if amount.LessThan(minimum) {
		return nil, domain.NewValidationError(domain.ReasonBelowMinimum,
			"bid %s is below the minimum acceptable %s", amount, minimum)
	}

	bids, err := s.bidRepo.GetVisibleBids(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if standing := standingMax(bids, customerID); standing != nil && standing.GreaterThanOrEqual(amount) {
		return nil, domain.NewValidationError(domain.ReasonBelowStandingMax,
			"bid %s does not raise the standing maximum %s", amount, standing)
	}

	history, err := s.historyRepo.GetHistory(ctx, lotID)
	if err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:         utils.GenerateID("bid"),
		LotID:      lotID,
		CustomerID: customerID,
		Amount:     amount,
		Type:       bidType,
		CreatedAt:  now,
	}

	result := pricing.Resolve(pricing.Input{
		StartingPrice: lot.StartingPrice,
		ReservePrice:  lot.ReservePrice,
		Bids:          bids,
		History:       history,
		NewBid:        &pricing.NewBid{CustomerID: customerID, Amount: amount, Type: bidType},
		Increments:    table,
	})

	firstBid := !lot.IsBidPlaced
	priceChanged := firstBid || !result.Price.Equal(lot.CurrentBid)

	lot.CurrentBid = result.Price
	lot.WinningBidCustomerID = result.WinnerCustomerID
	lot.LatestBidCustomerID = customerID
	lot.IsBidPlaced = true
	lot.ReserveMet = result.ReserveMet
	lot.UpdatedAt = now

	var item *domain.BidHistoryItem
	if priceChanged {
		item = &domain.BidHistoryItem{
			LotID:                lotID,
			WinningBidCustomerID: result.WinnerCustomerID,
			CurrentBid:           result.Price,
			CreatedAt:            now,
		}
	}
	if err := s.ledger.CommitResolution(ctx, lot, bid, item); err != nil {
		return nil, err
	}

	s.log.Info("Bid accepted", "lot_id", lotID, "customer_id", customerID,
		"amount", amount.String(), "resolved_price", result.Price.String(),
		"winner", result.WinnerCustomerID)

	if err := s.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
		Type:       domain.BidAccepted,
		LotID:      lotID,
		CustomerID: result.WinnerCustomerID,
		Amount:     result.Price,
		Timestamp:  now,
	}); err != nil {
		s.log.Error("Failed to publish bid event", "lot_id", lotID, "error", err)
	}

	s.extendOnSoftClose(ctx, lot, now)

	return &BidReceipt{BidID: bid.ID, Result: result}, nil
}

// CancelBid soft-cancels an accepted bid and re-resolves the lot as if the
// bid never existed. Serialized under the same per-lot lock as placement.
func (s *BidService) CancelBid(ctx context.Context, lotID, bidID string) error {
	release, err := s.locker.Acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	bid, err := s.bidRepo.GetBid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.LotID != lotID {
		return domain.NewNotFoundError("bid", bidID)
	}
	if err := s.bidRepo.HideBid(ctx, bidID); err != nil {
		return err
	}

	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return err
	}

	if err := s.reresolve(ctx, lot); err != nil {
		return err
	}

	now := s.now()
	if err := s.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
		Type:       domain.BidCancelled,
		LotID:      lotID,
		CustomerID: bid.CustomerID,
		Amount:     lot.CurrentBid,
		Timestamp:  now,
	}); err != nil {
		s.log.Error("Failed to publish cancel event", "lot_id", lotID, "error", err)
	}

	return nil
}

// ResetLot restarts a lot's auction: all bids are hidden, the history ledger
// is truncated, and the cached bid state returns to the starting price.
func (s *BidService) ResetLot(ctx context.Context, lotID string) error {
	release, err := s.locker.Acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	if err := s.bidRepo.HideAllBids(ctx, lotID); err != nil {
		return err
	}
	if err := s.historyRepo.TruncateHistory(ctx, lotID); err != nil {
		return err
	}

	lot.CurrentBid = lot.StartingPrice
	lot.IsBidPlaced = false
	lot.ReserveMet = false
	lot.WinningBidCustomerID = ""
	lot.LatestBidCustomerID = ""
	lot.UpdatedAt = s.now()
	if err := s.lotRepo.ResetLotBidState(ctx, lot); err != nil {
		return err
	}

	s.log.Info("Lot reset", "lot_id", lotID)
	return nil
}

// CurrentPrice resolves the lot's clearing state from the recorded bid set.
// Read-only: the cached lot fields are not touched.
func (s *BidService) CurrentPrice(ctx context.Context, lotID string) (*pricing.Result, error) {
	lot, err := s.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	bids, err := s.bidRepo.GetVisibleBids(ctx, lotID)
	if err != nil {
		return nil, err
	}
	history, err := s.historyRepo.GetHistory(ctx, lotID)
	if err != nil {
		return nil, err
	}
	table, err := s.incrementTable(ctx, lot.StoreID)
	if err != nil {
		return nil, err
	}

	result := pricing.Resolve(pricing.Input{
		StartingPrice: lot.StartingPrice,
		ReservePrice:  lot.ReservePrice,
		Bids:          bids,
		History:       history,
		Increments:    table,
	})
	return &result, nil
}

func (s *BidService) History(ctx context.Context, lotID string) (*domain.BidHistory, error) {
	if _, err := s.lotRepo.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return s.historyRepo.GetHistory(ctx, lotID)
}

// reresolve recomputes the lot from its current visible bid set, with no new
// bid in flight, and commits the refreshed cache plus a history item when
// the price or winner moved. Caller holds the lot lock.
func (s *BidService) reresolve(ctx context.Context, lot *domain.Lot) error {
	bids, err := s.bidRepo.GetVisibleBids(ctx, lot.ID)
	if err != nil {
		return err
	}
	history, err := s.historyRepo.GetHistory(ctx, lot.ID)
	if err != nil {
		return err
	}
	table, err := s.incrementTable(ctx, lot.StoreID)
	if err != nil {
		return err
	}

	result := pricing.Resolve(pricing.Input{
		StartingPrice: lot.StartingPrice,
		ReservePrice:  lot.ReservePrice,
		Bids:          bids,
		History:       history,
		Increments:    table,
	})

	changed := !result.Price.Equal(lot.CurrentBid) || result.WinnerCustomerID != lot.WinningBidCustomerID

	now := s.now()
	lot.CurrentBid = result.Price
	lot.WinningBidCustomerID = result.WinnerCustomerID
	lot.IsBidPlaced = len(bids) > 0
	lot.ReserveMet = result.ReserveMet
	lot.UpdatedAt = now

	var item *domain.BidHistoryItem
	if changed {
		item = &domain.BidHistoryItem{
			LotID:                lot.ID,
			WinningBidCustomerID: result.WinnerCustomerID,
			CurrentBid:           result.Price,
			CreatedAt:            now,
		}
	}
	return s.ledger.CommitResolution(ctx, lot, nil, item)
}

func (s *BidService) incrementTable(ctx context.Context, storeID string) (*pricing.Table, error) {
	bands, err := s.bandRepo.GetBands(ctx, storeID)
	if err != nil {
		return nil, err
	}
	table := pricing.NewTable(bands)
	if table.Empty() {
		s.log.Warn("No increment bands configured, defaulting increment to zero", "store_id", storeID)
	}
	return table, nil
}

// extendOnSoftClose pushes the close out by the grace window when a bid
// arrives within the last stretch before the end, so a snipe always leaves
// room for a response.
func (s *BidService) extendOnSoftClose(ctx context.Context, lot *domain.Lot, now time.Time) {
	if s.softClose <= 0 {
		return
	}
	remaining := lot.EndDatetime.Sub(now)
	if remaining <= 0 || remaining > s.softClose {
		return
	}

	newEnd := now.Add(s.softClose)
	if err := s.lotRepo.UpdateEndDatetime(ctx, lot.ID, newEnd); err != nil {
		s.log.Error("Failed to extend lot", "lot_id", lot.ID, "error", err)
		return
	}
	lot.EndDatetime = newEnd

	if s.scheduler != nil {
		if err := s.scheduler.RescheduleLotSettlement(ctx, lot.ID, newEnd); err != nil {
			s.log.Error("Failed to reschedule settlement", "lot_id", lot.ID, "error", err)
		}
	}

	if err := s.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
		Type:      domain.LotExtended,
		LotID:     lot.ID,
		Timestamp: now,
	}); err != nil {
		s.log.Error("Failed to publish extension event", "lot_id", lot.ID, "error", err)
	}

	s.log.Info("Lot extended", "lot_id", lot.ID, "new_end_datetime", newEnd)
}

func standingMax(bids []*domain.Bid, customerID string) *decimal.Decimal {
	var max *decimal.Decimal
	for _, bid := range bids {
		if bid.IsHidden || bid.CustomerID != customerID {
			continue
		}
		amount := bid.Amount
		if max == nil || amount.GreaterThan(*max) {
			max = &amount
		}
	}
	return max
}
