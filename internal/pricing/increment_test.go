package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"lotbid/internal/domain"
)

func TestTableIncrement(t *testing.T) {
	table := NewTable([]domain.IncrementBand{
		{From: dec("1000"), To: dec("5000"), Increment: dec("100")},
		{From: dec("0"), To: dec("1000"), Increment: dec("50")},
	})

	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{"inside first band", "500", "50"},
		{"band start is inclusive", "0", "50"},
		{"band end is exclusive", "1000", "100"},
		{"inside second band", "2500", "100"},
		{"above all bands", "5000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Increment(dec(tt.amount))
			assert.True(t, dec(tt.expected).Equal(got), "increment %s", got)
		})
	}
}

func TestTableIncrement_Empty(t *testing.T) {
	table := NewTable(nil)

	assert.True(t, table.Empty())
	assert.True(t, table.Increment(dec("300")).Equal(decimal.Zero))
	assert.True(t, table.MinimumStep(dec("300")).Equal(dec("300")))
}

func TestTableMinimumStep(t *testing.T) {
	table := standardTable()

	assert.True(t, dec("350").Equal(table.MinimumStep(dec("300"))))
	assert.True(t, dec("1300").Equal(table.MinimumStep(dec("1200"))))
}
