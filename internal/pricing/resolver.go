package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"lotbid/internal/domain"
)

// NewBid is a bid currently being placed. It is not part of Input.Bids; the
// resolver folds it into the working set itself.
type NewBid struct {
	CustomerID string
	Amount     decimal.Decimal
	Type       domain.BidType
}

// Input carries everything the resolver reads. Bids must contain every
// non-hidden bid already recorded for the lot, in any order.
type Input struct {
	StartingPrice decimal.Decimal
	ReservePrice  decimal.Decimal
	Bids          []*domain.Bid
	History       *domain.BidHistory
	NewBid        *NewBid
	Increments    *Table
}

// Result is the resolved clearing state of a lot.
//
// WinnerCustomerID is set whenever at least one customer has bid, even when
// the reserve is not met: the top bidder is the provisional winner for
// display. Settlement decides sold vs passed from ReserveMet, never from
// the recorded winner.
type Result struct {
	Price            decimal.Decimal
	WinnerCustomerID string
	ReserveMet       bool
}

// Resolve computes the current clearing price of a lot: the lot clears one
// increment above the second-highest customer's maximum, capped by the top
// customer's maximum, floored at the reserve once the reserve is met.
//
// Pure and side-effect-free. Zero bids and unmet reserve are valid outputs,
// not errors.
func Resolve(in Input) Result {
	if r, ok := resolveOwnRaise(in); ok {
		return r
	}

	entries := highestPerCustomer(in.Bids, in.NewBid)

	noReserve := !in.ReservePrice.IsPositive()

	if len(entries) == 0 {
		return Result{Price: in.StartingPrice, ReserveMet: noReserve}
	}

	top := entries[0]
	reserveMet := noReserve || top.amount.GreaterThanOrEqual(in.ReservePrice)

	if len(entries) == 1 {
		price := in.StartingPrice
		if !noReserve && reserveMet {
			price = in.ReservePrice
		}
		return Result{Price: price, WinnerCustomerID: top.customerID, ReserveMet: reserveMet}
	}

	second := entries[1]

	// A tie at the top clears at the shared maximum; the next bidder would
	// have to exceed it. The earlier bidder holds the win.
	if top.amount.Equal(second.amount) {
		return Result{Price: top.amount, WinnerCustomerID: top.customerID, ReserveMet: reserveMet}
	}

	increment := decimal.Zero
	if in.Increments != nil {
		increment = in.Increments.Increment(second.amount)
	}

	price := decimal.Min(top.amount, second.amount.Add(increment))
	if reserveMet && !noReserve {
		price = decimal.Max(in.ReservePrice, price)
	}

	return Result{Price: price, WinnerCustomerID: top.customerID, ReserveMet: reserveMet}
}

// resolveOwnRaise is the fast path for a customer raising their own standing
// winning bid with no new competitor: the resolved price must not move
// unless the raise crosses the reserve boundary, otherwise self-bidding
// would inflate the price against nobody.
//
// Applies only to DIRECT/MAX submissions with at least 3 prior bids and the
// last recorded winner matching the submitting customer.
func resolveOwnRaise(in Input) (Result, bool) {
	if in.NewBid == nil || in.NewBid.Type == domain.BidTypeAdvanced {
		return Result{}, false
	}
	if len(in.Bids) < 3 {
		return Result{}, false
	}
	last := in.History.LastItem()
	if last == nil || last.WinningBidCustomerID != in.NewBid.CustomerID {
		return Result{}, false
	}

	currentBid := last.CurrentBid
	amount := in.NewBid.Amount
	reserve := in.ReservePrice

	switch {
	case currentBid.LessThan(amount) && amount.LessThan(reserve):
		// Still under reserve: no competitor forced a jump.
		return Result{Price: currentBid, WinnerCustomerID: in.NewBid.CustomerID, ReserveMet: false}, true
	case amount.GreaterThan(currentBid) && currentBid.GreaterThan(reserve):
		// Already above reserve: raising the own maximum changes nothing.
		return Result{Price: currentBid, WinnerCustomerID: in.NewBid.CustomerID, ReserveMet: true}, true
	case amount.GreaterThanOrEqual(reserve) && reserve.GreaterThan(currentBid):
		// Reserve newly met: price jumps to the reserve, no further.
		return Result{Price: reserve, WinnerCustomerID: in.NewBid.CustomerID, ReserveMet: true}, true
	}

	return Result{}, false
}

type customerMax struct {
	customerID string
	amount     decimal.Decimal
	firstAt    time.Time
}

// highestPerCustomer reduces the bid set to each customer's highest amount,
// sorted descending. Equal amounts rank the earlier bidder first: created-at
// is the tie-break and earlier wins.
func highestPerCustomer(bids []*domain.Bid, newBid *NewBid) []customerMax {
	byCustomer := make(map[string]*customerMax)
	order := make([]string, 0, len(bids))

	consider := func(customerID string, amount decimal.Decimal, at time.Time) {
		entry, seen := byCustomer[customerID]
		if !seen {
			byCustomer[customerID] = &customerMax{customerID: customerID, amount: amount, firstAt: at}
			order = append(order, customerID)
			return
		}
		if amount.GreaterThan(entry.amount) {
			entry.amount = amount
			entry.firstAt = at
		}
	}

	for _, bid := range bids {
		if bid.IsHidden {
			continue
		}
		consider(bid.CustomerID, bid.Amount, bid.CreatedAt)
	}
	if newBid != nil {
		consider(newBid.CustomerID, newBid.Amount, time.Now())
	}

	entries := make([]customerMax, 0, len(order))
	for _, customerID := range order {
		entries = append(entries, *byCustomer[customerID])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].amount.Equal(entries[j].amount) {
			return entries[i].amount.GreaterThan(entries[j].amount)
		}
		return entries[i].firstAt.Before(entries[j].firstAt)
	})
	return entries
}
