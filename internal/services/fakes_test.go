package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"lotbid/internal/domain"
)

// In-memory doubles for the persistence and coordination ports. They mirror
// the MySQL/Redis implementations closely enough for service-level tests:
// the lot repo hands out copies, the ledger assigns history sequence numbers,
// and the locker refuses re-entry while held.

type memLotRepo struct {
	mu   sync.Mutex
	lots map[string]*domain.Lot
}

func newMemLotRepo() *memLotRepo {
	return &memLotRepo{lots: make(map[string]*domain.Lot)}
}

func (r *memLotRepo) CreateLot(ctx context.Context, lot *domain.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *lot
	r.lots[lot.ID] = &copied
	return nil
}

func (r *memLotRepo) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[lotID]
	if !ok {
		return nil, domain.NewNotFoundError("lot", lotID)
	}
	copied := *lot
	return &copied, nil
}

func (r *memLotRepo) UpdateLotBidState(ctx context.Context, lot *domain.Lot) error {
	return r.store(lot)
}

func (r *memLotRepo) ArchiveLot(ctx context.Context, lot *domain.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lots[lot.ID]
	if !ok || existing.Status != domain.LotActive {
		// Idempotency guard, matches UPDATE ... WHERE status = active.
		return nil
	}
	copied := *lot
	r.lots[lot.ID] = &copied
	return nil
}

func (r *memLotRepo) UpdateEndDatetime(ctx context.Context, lotID string, endDatetime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[lotID]
	if !ok {
		return domain.NewNotFoundError("lot", lotID)
	}
	lot.EndDatetime = endDatetime
	return nil
}

func (r *memLotRepo) GetEndedActiveLots(ctx context.Context, storeID string, before time.Time) ([]*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Lot
	for _, lot := range r.lots {
		if lot.StoreID == storeID && lot.Status == domain.LotActive && !lot.EndDatetime.After(before) {
			copied := *lot
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memLotRepo) ResetLotBidState(ctx context.Context, lot *domain.Lot) error {
	return r.store(lot)
}

func (r *memLotRepo) store(lot *domain.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lots[lot.ID]; !ok {
		return domain.NewNotFoundError("lot", lot.ID)
	}
	copied := *lot
	r.lots[lot.ID] = &copied
	return nil
}

type memBidRepo struct {
	mu   sync.Mutex
	bids []*domain.Bid
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{}
}

func (r *memBidRepo) CreateBid(ctx context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *bid
	r.bids = append(r.bids, &copied)
	return nil
}

func (r *memBidRepo) GetVisibleBids(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, bid := range r.bids {
		if bid.LotID == lotID && !bid.IsHidden {
			copied := *bid
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memBidRepo) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bid := range r.bids {
		if bid.ID == bidID {
			copied := *bid
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("bid", bidID)
}

func (r *memBidRepo) HideBid(ctx context.Context, bidID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bid := range r.bids {
		if bid.ID == bidID {
			bid.IsHidden = true
			return nil
		}
	}
	return domain.NewNotFoundError("bid", bidID)
}

func (r *memBidRepo) HideAllBids(ctx context.Context, lotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bid := range r.bids {
		if bid.LotID == lotID {
			bid.IsHidden = true
		}
	}
	return nil
}

func (r *memBidRepo) count(lotID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, bid := range r.bids {
		if bid.LotID == lotID {
			n++
		}
	}
	return n
}

type memHistoryRepo struct {
	mu    sync.Mutex
	items map[string][]domain.BidHistoryItem
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{items: make(map[string][]domain.BidHistoryItem)}
}

func (r *memHistoryRepo) GetHistory(ctx context.Context, lotID string) (*domain.BidHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := &domain.BidHistory{LotID: lotID}
	history.Items = append(history.Items, r.items[lotID]...)
	if last := history.LastItem(); last != nil {
		history.CurrentBid = last.CurrentBid
	}
	return history, nil
}

func (r *memHistoryRepo) AppendItem(ctx context.Context, item *domain.BidHistoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(item)
	return nil
}

func (r *memHistoryRepo) TruncateHistory(ctx context.Context, lotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, lotID)
	return nil
}

func (r *memHistoryRepo) append(item *domain.BidHistoryItem) {
	copied := *item
	copied.Seq = int64(len(r.items[item.LotID]) + 1)
	r.items[item.LotID] = append(r.items[item.LotID], copied)
}

type memBandRepo struct {
	bands map[string][]domain.IncrementBand
}

func newMemBandRepo() *memBandRepo {
	return &memBandRepo{bands: make(map[string][]domain.IncrementBand)}
}

func (r *memBandRepo) GetBands(ctx context.Context, storeID string) ([]domain.IncrementBand, error) {
	return r.bands[storeID], nil
}

func (r *memBandRepo) ReplaceBands(ctx context.Context, storeID string, bands []domain.IncrementBand) error {
	r.bands[storeID] = bands
	return nil
}

type memPassedRepo struct {
	mu      sync.Mutex
	records []*domain.PassedLotRecord
}

func newMemPassedRepo() *memPassedRepo {
	return &memPassedRepo{}
}

func (r *memPassedRepo) CreateRecord(ctx context.Context, record *domain.PassedLotRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

// memLedger applies all writes against the same backing stores, standing in
// for the single MySQL transaction. failWith short-circuits the commit so
// tests can assert nothing was persisted.
type memLedger struct {
	lots     *memLotRepo
	bids     *memBidRepo
	history  *memHistoryRepo
	failWith error
}

func (l *memLedger) CommitResolution(ctx context.Context, lot *domain.Lot, bid *domain.Bid, item *domain.BidHistoryItem) error {
	if l.failWith != nil {
		return l.failWith
	}
	if bid != nil {
		if err := l.bids.CreateBid(ctx, bid); err != nil {
			return err
		}
	}
	if err := l.lots.store(lot); err != nil {
		return err
	}
	if item != nil {
		l.history.mu.Lock()
		l.history.append(item)
		l.history.mu.Unlock()
	}
	return nil
}

// memStateCache mirrors lot statuses the way the Redis cache does, with a
// found flag distinguishing a miss from a hit.
type memStateCache struct {
	mu       sync.Mutex
	statuses map[string]domain.LotStatus
}

func newMemStateCache() *memStateCache {
	return &memStateCache{statuses: make(map[string]domain.LotStatus)}
}

func (c *memStateCache) SetLotStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[lotID] = status
	return nil
}

func (c *memStateCache) GetLotStatus(ctx context.Context, lotID string) (domain.LotStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[lotID]
	return status, ok, nil
}

// memLocker hands out at most one outstanding hold per lot, like the Redis
// SetNX lock. acquired counts successful holds.
type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(ctx context.Context, lotID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[lotID] {
		return nil, &domain.ConcurrencyConflictError{LotID: lotID}
	}
	l.held[lotID] = true
	l.acquired++
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[lotID] = false
	}
	return release, nil
}

type memEventPub struct {
	mu     sync.Mutex
	events []*domain.BidEvent
}

func newMemEventPub() *memEventPub {
	return &memEventPub{}
}

func (p *memEventPub) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *event
	p.events = append(p.events, &copied)
	return nil
}

func (p *memEventPub) ofType(t domain.BidEventType) []*domain.BidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.BidEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memScheduler struct {
	mu          sync.Mutex
	rescheduled map[string]time.Time
}

func newMemScheduler() *memScheduler {
	return &memScheduler{rescheduled: make(map[string]time.Time)}
}

func (s *memScheduler) ScheduleLotActivation(ctx context.Context, lotID string, startTime time.Time) error {
	return nil
}

func (s *memScheduler) ScheduleLotSettlement(ctx context.Context, lotID string, endTime time.Time) error {
	return nil
}

func (s *memScheduler) RescheduleLotSettlement(ctx context.Context, lotID string, newEndTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduled[lotID] = newEndTime
	return nil
}

func (s *memScheduler) CancelSchedule(ctx context.Context, lotID string) error { return nil }
func (s *memScheduler) Start(ctx context.Context) error                        { return nil }
func (s *memScheduler) Stop() error                                            { return nil }

type stubLeader struct {
	leader bool
}

func (l *stubLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return l.leader, nil
}

func (l *stubLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return l.leader, nil
}

func (l *stubLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
