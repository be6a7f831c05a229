package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lotbid/internal/domain"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"
)

// LotManager owns the lot lifecycle outside of bidding: creation when a
// consignment is approved, activation at window start, and the status cache
// the bid path checks.
type LotManager struct {
	lotRepo    domain.LotRepository
	stateCache domain.LotStateCache
	scheduler  domain.LotScheduler
	log        logger.Logger
}

func NewLotManager(
	lotRepo domain.LotRepository,
	stateCache domain.LotStateCache,
	scheduler domain.LotScheduler,
	log logger.Logger,
) *LotManager {
	return &LotManager{
		lotRepo:    lotRepo,
		stateCache: stateCache,
		scheduler:  scheduler,
		log:        log,
	}
}

// SetScheduler breaks the construction cycle with CronLotScheduler, which
// needs the manager to dispatch activation jobs.
func (m *LotManager) SetScheduler(scheduler domain.LotScheduler) {
	m.scheduler = scheduler
}

type CreateLotParams struct {
	StoreID         string
	OwnerCustomerID string
	Title           string
	StartingPrice   decimal.Decimal
	ReservePrice    decimal.Decimal
	StartDatetime   time.Time
	EndDatetime     time.Time
}

// CreateLot registers an approved consignment as an auctionable lot. Lots
// starting in the future are created DISABLED and flipped ACTIVE by the
// activation job; lots already inside their window go live immediately.
func (m *LotManager) CreateLot(ctx context.Context, params CreateLotParams) (*domain.Lot, error) {
	now := time.Now()

	status := domain.LotActive
	if params.StartDatetime.After(now) {
		status = domain.LotDisabled
	}

	lot := &domain.Lot{
		ID:              utils.GenerateID("lot"),
		StoreID:         params.StoreID,
		OwnerCustomerID: params.OwnerCustomerID,
		Title:           params.Title,
		StartingPrice:   params.StartingPrice,
		ReservePrice:    params.ReservePrice,
		CurrentBid:      params.StartingPrice,
		Status:          status,
		StartDatetime:   params.StartDatetime,
		EndDatetime:     params.EndDatetime,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.lotRepo.CreateLot(ctx, lot); err != nil {
		return nil, err
	}
	if err := m.stateCache.SetLotStatus(ctx, lot.ID, status); err != nil {
		return nil, err
	}

	if status == domain.LotDisabled {
		if err := m.scheduler.ScheduleLotActivation(ctx, lot.ID, params.StartDatetime); err != nil {
			return nil, err
		}
	}
	if err := m.scheduler.ScheduleLotSettlement(ctx, lot.ID, params.EndDatetime); err != nil {
		return nil, err
	}

	m.log.Info("Lot created", "lot_id", lot.ID, "store_id", lot.StoreID, "status", status.String())
	return lot, nil
}

// ActivateLot flips a DISABLED lot ACTIVE at window start.
func (m *LotManager) ActivateLot(ctx context.Context, lotID string) error {
	lot, err := m.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	if lot.Status != domain.LotDisabled {
		return nil
	}

	lot.Status = domain.LotActive
	lot.UpdatedAt = time.Now()
	if err := m.lotRepo.UpdateLotBidState(ctx, lot); err != nil {
		return err
	}
	if err := m.stateCache.SetLotStatus(ctx, lotID, domain.LotActive); err != nil {
		return err
	}

	m.log.Info("Lot activated", "lot_id", lotID)
	return nil
}

func (m *LotManager) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	return m.lotRepo.GetLot(ctx, lotID)
}
