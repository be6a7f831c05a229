package domain

import (
	"context"
	"time"
)

// Repository interfaces
type LotRepository interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, lotID string) (*Lot, error)
	UpdateLotBidState(ctx context.Context, lot *Lot) error
	ArchiveLot(ctx context.Context, lot *Lot) error
	UpdateEndDatetime(ctx context.Context, lotID string, endDatetime time.Time) error
	GetEndedActiveLots(ctx context.Context, storeID string, before time.Time) ([]*Lot, error)
	ResetLotBidState(ctx context.Context, lot *Lot) error
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	GetVisibleBids(ctx context.Context, lotID string) ([]*Bid, error)
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	HideBid(ctx context.Context, bidID string) error
	HideAllBids(ctx context.Context, lotID string) error
}

type BidHistoryRepository interface {
	GetHistory(ctx context.Context, lotID string) (*BidHistory, error)
	AppendItem(ctx context.Context, item *BidHistoryItem) error
	TruncateHistory(ctx context.Context, lotID string) error
}

type IncrementBandRepository interface {
	GetBands(ctx context.Context, storeID string) ([]IncrementBand, error)
	ReplaceBands(ctx context.Context, storeID string, bands []IncrementBand) error
}

type PassedLotRepository interface {
	CreateRecord(ctx context.Context, record *PassedLotRecord) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForLot(ctx context.Context, lotID string) error
}

// ResolutionLedger commits a resolution outcome: the accepted bid row when
// one was placed, the lot's refreshed cached bid state, and, when the
// resolved price moved, the next history item. All writes land in one
// transaction so no reader observes a bid without the matching cached state,
// or the cache updated without its ledger entry. bid and item may be nil.
type ResolutionLedger interface {
	CommitResolution(ctx context.Context, lot *Lot, bid *Bid, item *BidHistoryItem) error
}

// LotLocker serializes the read-resolve-validate-write sequence per lot.
// Release must be called on all exit paths.
type LotLocker interface {
	Acquire(ctx context.Context, lotID string) (release func(), err error)
}

// LotStateCache is a best-effort status mirror read before the lot lock is
// taken, so bids on closed lots fail fast without a lock round trip. found
// is false on a cache miss; the database status check under the lock stays
// authoritative either way.
type LotStateCache interface {
	SetLotStatus(ctx context.Context, lotID string, status LotStatus) error
	GetLotStatus(ctx context.Context, lotID string) (status LotStatus, found bool, err error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// Notification interfaces
type CustomerNotifier interface {
	NotifyCustomer(ctx context.Context, customerID string, message interface{}) error
}

type LotBroadcaster interface {
	BroadcastToLot(ctx context.Context, lotID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type LotScheduler interface {
	ScheduleLotActivation(ctx context.Context, lotID string, startTime time.Time) error
	ScheduleLotSettlement(ctx context.Context, lotID string, endTime time.Time) error
	RescheduleLotSettlement(ctx context.Context, lotID string, newEndTime time.Time) error
	CancelSchedule(ctx context.Context, lotID string) error
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	CustomerID() string
	LotID() string
}

type ConnectionManager interface {
	RegisterConnection(customerID, lotID string, conn WebSocketConnection) error
	UnregisterConnection(customerID, lotID string) error
	GetConnectionsForLot(lotID string) []WebSocketConnection
	GetConnectionsForCustomer(customerID string) []WebSocketConnection
	BroadcastToLot(lotID string, message interface{}) error
	NotifyCustomer(customerID string, message interface{}) error
	CloseAndUnregisterConnections(lotID string) error
}
