package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"lotbid/internal/domain"
)

// Table is an ordered set of increment bands. Bands are read-only at
// resolution time; administrative edits produce a new Table.
type Table struct {
	bands []domain.IncrementBand
}

// NewTable builds a lookup table from configured bands, sorted ascending by
// band start. Overlap resolution is first-match-wins after sorting.
func NewTable(bands []domain.IncrementBand) *Table {
	sorted := make([]domain.IncrementBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].From.LessThan(sorted[j].From)
	})
	return &Table{bands: sorted}
}

// Increment returns the bid step for the band containing amount, or zero
// when no band matches. An empty table is a configuration gap, not an
// error: resolution proceeds with a zero step.
func (t *Table) Increment(amount decimal.Decimal) decimal.Decimal {
	for _, band := range t.bands {
		if band.Contains(amount) {
			return band.Increment
		}
	}
	return decimal.Zero
}

func (t *Table) Empty() bool {
	return len(t.bands) == 0
}

// MinimumStep returns amount plus its band increment, the lowest acceptable
// next bid once bidding has started.
func (t *Table) MinimumStep(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(t.Increment(amount))
}
