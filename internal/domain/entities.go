package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Lot struct {
	ID                   string
	StoreID              string
	OwnerCustomerID      string
	Title                string
	StartingPrice        decimal.Decimal
	ReservePrice         decimal.Decimal
	CurrentBid           decimal.Decimal
	IsBidPlaced          bool
	ReserveMet           bool
	WinningBidCustomerID string
	LatestBidCustomerID  string
	Status               LotStatus
	Disposition          LotDisposition
	StartDatetime        time.Time
	EndDatetime          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasReserve reports whether a reserve price is set. A zero reserve means
// "no reserve": the reserve is always considered met.
func (l *Lot) HasReserve() bool {
	return l.ReservePrice.IsPositive()
}

func (l *Lot) WindowContains(t time.Time) bool {
	return !t.Before(l.StartDatetime) && t.Before(l.EndDatetime)
}

type LotStatus int

const (
	LotActive LotStatus = iota
	LotArchived
	LotDeleted
	LotDisabled
)

func (s LotStatus) String() string {
	switch s {
	case LotActive:
		return "active"
	case LotArchived:
		return "archived"
	case LotDeleted:
		return "deleted"
	case LotDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// LotDisposition records how an archived lot left the auction.
type LotDisposition string

const (
	DispositionNone   LotDisposition = ""
	DispositionSold   LotDisposition = "sold"
	DispositionPassed LotDisposition = "passed"
)

type BidType string

const (
	BidTypeDirect   BidType = "DIRECT"
	BidTypeMax      BidType = "MAX"
	BidTypeAdvanced BidType = "ADVANCED"
)

func (t BidType) Valid() bool {
	switch t {
	case BidTypeDirect, BidTypeMax, BidTypeAdvanced:
		return true
	}
	return false
}

// Bid is immutable once created except for the IsHidden soft-cancel flag.
// Hidden bids are excluded from resolution but retained for audit.
type Bid struct {
	ID         string
	LotID      string
	CustomerID string
	Amount     decimal.Decimal
	Type       BidType
	IsHidden   bool
	CreatedAt  time.Time
}

// BidHistory is the append-only ledger of resolved-price snapshots for one
// lot. The last item is the authoritative current winner.
type BidHistory struct {
	LotID      string
	CurrentBid decimal.Decimal
	Items      []BidHistoryItem
}

func (h *BidHistory) LastItem() *BidHistoryItem {
	if h == nil || len(h.Items) == 0 {
		return nil
	}
	return &h.Items[len(h.Items)-1]
}

type BidHistoryItem struct {
	LotID                string
	Seq                  int64
	WinningBidCustomerID string
	CurrentBid           decimal.Decimal
	CreatedAt            time.Time
}

// IncrementBand maps the half-open amount range [From, To) to the minimum
// bid step applied on top of the second-highest maximum.
type IncrementBand struct {
	ID        string
	StoreID   string
	From      decimal.Decimal
	To        decimal.Decimal
	Increment decimal.Decimal
}

func (b IncrementBand) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.From) && amount.LessThan(b.To)
}

// PassedLotRecord is the audit row written when settlement archives a lot
// unsold, either because no bid was placed or the reserve was never met.
type PassedLotRecord struct {
	ID           string
	LotID        string
	StoreID      string
	HighestBid   decimal.Decimal
	ReservePrice decimal.Decimal
	CreatedAt    time.Time
}

type BidEvent struct {
	Type       BidEventType    `json:"type"`
	LotID      string          `json:"lot_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Sold       bool            `json:"sold"`
	Timestamp  time.Time       `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted  BidEventType = "bid_accepted"
	BidCancelled BidEventType = "bid_cancelled"
	LotExtended  BidEventType = "lot_extended"
	LotSettled   BidEventType = "lot_settled"
)

type ScheduledJob struct {
	ID        string
	LotID     string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobActivateLot JobType = "activate_lot"
	JobSettleLot   JobType = "settle_lot"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
