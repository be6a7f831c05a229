package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"lotbid/internal/domain"
)

// MySQLResolutionLedger commits a resolution outcome in one transaction:
// the accepted bid row when one was placed, the lot's cached bid state, and,
// when present, the next history item. A reader never sees one without the
// others.
type MySQLResolutionLedger struct {
	db *sql.DB
}

func NewMySQLResolutionLedger(db *sql.DB) *MySQLResolutionLedger {
	return &MySQLResolutionLedger{db: db}
}

func (l *MySQLResolutionLedger) CommitResolution(ctx context.Context, lot *domain.Lot, bid *domain.Bid, item *domain.BidHistoryItem) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if bid != nil {
		if err := insertBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
	}

	query := `
        UPDATE lots SET current_bid = ?, is_bid_placed = ?, reserve_met = ?,
            winning_bid_customer_id = ?, latest_bid_customer_id = ?, updated_at = ?
        WHERE id = ?
    `
	if _, err := tx.ExecContext(ctx, query,
		lot.CurrentBid, lot.IsBidPlaced, lot.ReserveMet,
		lot.WinningBidCustomerID, lot.LatestBidCustomerID,
		lot.UpdatedAt, lot.ID); err != nil {
		return fmt.Errorf("update lot bid state: %w", err)
	}

	if item != nil {
		if err := appendHistoryItem(ctx, tx, item); err != nil {
			return fmt.Errorf("append history item: %w", err)
		}
	}

	return tx.Commit()
}
