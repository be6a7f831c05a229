package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotbid/internal/domain"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func bidAt(customerID, amount string, offset time.Duration) *domain.Bid {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Bid{
		ID:         customerID + "-" + amount,
		CustomerID: customerID,
		Amount:     dec(amount),
		Type:       domain.BidTypeMax,
		CreatedAt:  base.Add(offset),
	}
}

func standardTable() *Table {
	return NewTable([]domain.IncrementBand{
		{From: dec("0"), To: dec("1000"), Increment: dec("50")},
		{From: dec("1000"), To: dec("5000"), Increment: dec("100")},
	})
}

func TestResolve_ZeroBids(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("500"),
		Increments:    standardTable(),
	})

	assert.True(t, dec("100").Equal(result.Price), "price %s", result.Price)
	assert.Empty(t, result.WinnerCustomerID)
	assert.False(t, result.ReserveMet)
}

func TestResolve_SingleBidderBelowReserve(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("500"),
		Bids:          []*domain.Bid{bidAt("cust-a", "200", 0)},
		Increments:    standardTable(),
	})

	assert.True(t, dec("100").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID, "top bidder stays provisional winner")
	assert.False(t, result.ReserveMet)
}

func TestResolve_SingleBidderMeetsReserve(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("500"),
		Bids:          []*domain.Bid{bidAt("cust-a", "600", 0)},
		Increments:    standardTable(),
	})

	assert.True(t, dec("500").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
	assert.True(t, result.ReserveMet)
}

func TestResolve_SingleBidderNoReserve(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids:          []*domain.Bid{bidAt("cust-a", "600", 0)},
		Increments:    standardTable(),
	})

	assert.True(t, dec("100").Equal(result.Price), "no reserve means the floor is the starting price")
	assert.True(t, result.ReserveMet)
}

func TestResolve_TwoBiddersTieAtMax(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("200"),
		Bids: []*domain.Bid{
			bidAt("cust-a", "300", 0),
			bidAt("cust-b", "300", time.Minute),
		},
		Increments: standardTable(),
	})

	assert.True(t, dec("300").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID, "earlier bid wins the tie")
	assert.True(t, result.ReserveMet)
}

func TestResolve_TwoBiddersReserveMet(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("200"),
		Bids: []*domain.Bid{
			bidAt("cust-a", "500", 0),
			bidAt("cust-b", "300", time.Minute),
		},
		Increments: standardTable(),
	})

	// max(200, min(500, 300+50)) = 350
	assert.True(t, dec("350").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
	assert.True(t, result.ReserveMet)
}

func TestResolve_TwoBiddersReserveNotMet(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("500"),
		Bids: []*domain.Bid{
			bidAt("cust-a", "150", 0),
			bidAt("cust-b", "100", time.Minute),
		},
		Increments: standardTable(),
	})

	// min(150, 100+50) = 150, no reserve floor
	assert.True(t, dec("150").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
	assert.False(t, result.ReserveMet)
}

func TestResolve_ReserveFloorsThePrice(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("400"),
		Bids: []*domain.Bid{
			bidAt("cust-a", "500", 0),
			bidAt("cust-b", "300", time.Minute),
		},
		Increments: standardTable(),
	})

	// min(500, 350) = 350 is below the met reserve, so the reserve wins.
	assert.True(t, dec("400").Equal(result.Price), "price %s", result.Price)
}

func TestResolve_IncrementCappedByTopMaximum(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids: []*domain.Bid{
			bidAt("cust-a", "320", 0),
			bidAt("cust-b", "300", time.Minute),
		},
		Increments: standardTable(),
	})

	// 300+50 exceeds the top maximum, clears at 320.
	assert.True(t, dec("320").Equal(result.Price), "price %s", result.Price)
}

func TestResolve_NoIncrementBandDefaultsToZero(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids: []*domain.Bid{
			bidAt("cust-a", "8000", 0),
			bidAt("cust-b", "6000", time.Minute),
		},
		Increments: standardTable(),
	})

	// 6000 is outside every band: increment 0, price = secondBid exactly.
	assert.True(t, dec("6000").Equal(result.Price), "price %s", result.Price)
}

func TestResolve_PerCustomerMaximaOnly(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids: []*domain.Bid{
			bidAt("cust-a", "200", 0),
			bidAt("cust-a", "900", time.Minute),
			bidAt("cust-b", "300", 2*time.Minute),
			bidAt("cust-b", "250", 3*time.Minute),
		},
		Increments: standardTable(),
	})

	// per-customer maxima: a=900, b=300 -> min(900, 300+50)
	assert.True(t, dec("350").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
}

func TestResolve_HiddenBidsExcluded(t *testing.T) {
	hidden := bidAt("cust-c", "5000", 0)
	hidden.IsHidden = true

	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids: []*domain.Bid{
			hidden,
			bidAt("cust-a", "500", time.Minute),
			bidAt("cust-b", "300", 2*time.Minute),
		},
		Increments: standardTable(),
	})

	assert.True(t, dec("350").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
}

func TestResolve_NewBidJoinsTheWorkingSet(t *testing.T) {
	result := Resolve(Input{
		StartingPrice: dec("100"),
		ReservePrice:  decimal.Zero,
		Bids:          []*domain.Bid{bidAt("cust-a", "300", 0)},
		NewBid:        &NewBid{CustomerID: "cust-b", Amount: dec("500"), Type: domain.BidTypeMax},
		Increments:    standardTable(),
	})

	assert.True(t, dec("350").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-b", result.WinnerCustomerID)
}

func TestResolve_Deterministic(t *testing.T) {
	in := Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("400"),
		Bids: []*domain.Bid{
			bidAt("cust-a", "500", 0),
			bidAt("cust-b", "300", time.Minute),
			bidAt("cust-c", "450", 2*time.Minute),
		},
		Increments: standardTable(),
	}

	first := Resolve(in)
	for i := 0; i < 10; i++ {
		again := Resolve(in)
		require.True(t, first.Price.Equal(again.Price))
		require.Equal(t, first.WinnerCustomerID, again.WinnerCustomerID)
		require.Equal(t, first.ReserveMet, again.ReserveMet)
	}
}

func ownRaiseInput(currentBid string) Input {
	history := &domain.BidHistory{
		LotID: "lot-1",
		Items: []domain.BidHistoryItem{
			{Seq: 1, WinningBidCustomerID: "cust-b", CurrentBid: dec("150")},
			{Seq: 2, WinningBidCustomerID: "cust-a", CurrentBid: dec(currentBid)},
		},
	}
	return Input{
		StartingPrice: dec("100"),
		ReservePrice:  dec("500"),
		Bids: []*domain.Bid{
			bidAt("cust-b", "150", 0),
			bidAt("cust-a", "200", time.Minute),
			bidAt("cust-a", "250", 2*time.Minute),
		},
		History:    history,
		Increments: standardTable(),
	}
}

func TestResolve_OwnRaiseUnderReserveKeepsPrice(t *testing.T) {
	in := ownRaiseInput("200")
	in.NewBid = &NewBid{CustomerID: "cust-a", Amount: dec("300"), Type: domain.BidTypeMax}

	result := Resolve(in)

	assert.True(t, dec("200").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
	assert.False(t, result.ReserveMet)
}

func TestResolve_OwnRaiseCrossesReserve(t *testing.T) {
	in := ownRaiseInput("200")
	in.NewBid = &NewBid{CustomerID: "cust-a", Amount: dec("600"), Type: domain.BidTypeMax}

	result := Resolve(in)

	assert.True(t, dec("500").Equal(result.Price), "price %s", result.Price)
	assert.True(t, result.ReserveMet)
}

func TestResolve_OwnRaiseAboveReserveKeepsPrice(t *testing.T) {
	in := ownRaiseInput("550")
	in.NewBid = &NewBid{CustomerID: "cust-a", Amount: dec("700"), Type: domain.BidTypeMax}

	result := Resolve(in)

	assert.True(t, dec("550").Equal(result.Price), "price %s", result.Price)
	assert.True(t, result.ReserveMet)
}

func TestResolve_OwnRaiseSkippedForAdvancedBids(t *testing.T) {
	in := ownRaiseInput("200")
	in.NewBid = &NewBid{CustomerID: "cust-a", Amount: dec("300"), Type: domain.BidTypeAdvanced}

	result := Resolve(in)

	// Advanced bids take the general path: a=300, b=150 -> min(300, 150+50).
	assert.True(t, dec("200").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-a", result.WinnerCustomerID)
}

func TestResolve_OwnRaiseNeedsThreePriorBids(t *testing.T) {
	in := ownRaiseInput("200")
	in.Bids = in.Bids[:2]
	in.NewBid = &NewBid{CustomerID: "cust-a", Amount: dec("300"), Type: domain.BidTypeMax}

	result := Resolve(in)

	// General path: a=300, b=150 -> min(300, 200) under unmet reserve.
	assert.True(t, dec("200").Equal(result.Price), "price %s", result.Price)
}

func TestResolve_OwnRaiseSkippedForOtherCustomer(t *testing.T) {
	in := ownRaiseInput("200")
	in.NewBid = &NewBid{CustomerID: "cust-b", Amount: dec("300"), Type: domain.BidTypeMax}

	result := Resolve(in)

	// cust-b outbids: a=250 vs b=300 -> min(300, 250+50) = 300, reserve unmet.
	assert.True(t, dec("300").Equal(result.Price), "price %s", result.Price)
	assert.Equal(t, "cust-b", result.WinnerCustomerID)
}
