package mysql

import (
	"context"
	"database/sql"

	"lotbid/internal/domain"
)

// MySQLBidHistoryRepository stores the per-lot resolution ledger as rows
// with a monotonic seq, so the append-only ordering invariant is enforced
// by the storage layer rather than an in-place array.
type MySQLBidHistoryRepository struct {
	db *sql.DB
}

func NewMySQLBidHistoryRepository(db *sql.DB) *MySQLBidHistoryRepository {
	return &MySQLBidHistoryRepository{db: db}
}

func (r *MySQLBidHistoryRepository) GetHistory(ctx context.Context, lotID string) (*domain.BidHistory, error) {
	query := `
        SELECT lot_id, seq, winning_bid_customer_id, current_bid, created_at
        FROM bid_history_items
        WHERE lot_id = ?
        ORDER BY seq ASC
    `

	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := &domain.BidHistory{LotID: lotID}
	for rows.Next() {
		var item domain.BidHistoryItem
		err := rows.Scan(&item.LotID, &item.Seq, &item.WinningBidCustomerID,
			&item.CurrentBid, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		history.Items = append(history.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if last := history.LastItem(); last != nil {
		history.CurrentBid = last.CurrentBid
	}
	return history, nil
}

func (r *MySQLBidHistoryRepository) AppendItem(ctx context.Context, item *domain.BidHistoryItem) error {
	return appendHistoryItem(ctx, r.db, item)
}

// TruncateHistory supports only the administrative lot reset; nothing else
// ever removes ledger rows.
func (r *MySQLBidHistoryRepository) TruncateHistory(ctx context.Context, lotID string) error {
	query := `DELETE FROM bid_history_items WHERE lot_id = ?`
	_, err := r.db.ExecContext(ctx, query, lotID)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// appendHistoryItem assigns the next seq inside the INSERT itself so two
// writers cannot allocate the same position.
func appendHistoryItem(ctx context.Context, ex execer, item *domain.BidHistoryItem) error {
	query := `
        INSERT INTO bid_history_items (lot_id, seq, winning_bid_customer_id, current_bid, created_at)
        SELECT ?, COALESCE(MAX(h.seq), 0) + 1, ?, ?, ?
        FROM bid_history_items h WHERE h.lot_id = ?
    `
	_, err := ex.ExecContext(ctx, query,
		item.LotID, item.WinningBidCustomerID, item.CurrentBid, item.CreatedAt, item.LotID)
	return err
}
