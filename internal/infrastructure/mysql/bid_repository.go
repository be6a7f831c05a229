package mysql

import (
	"context"
	"database/sql"
	"errors"

	"lotbid/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	return insertBid(ctx, r.db, bid)
}

// insertBid writes one bid row through db or an open transaction, so the
// resolution ledger can commit the bid together with the lot state.
func insertBid(ctx context.Context, ex execer, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, lot_id, customer_id, amount, bid_type, is_hidden, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := ex.ExecContext(ctx, query,
		bid.ID, bid.LotID, bid.CustomerID, bid.Amount,
		string(bid.Type), bid.IsHidden, bid.CreatedAt)
	return err
}

func (r *MySQLBidRepository) GetVisibleBids(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, lot_id, customer_id, amount, bid_type, is_hidden, created_at
        FROM bids
        WHERE lot_id = ? AND is_hidden = FALSE
        ORDER BY created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `
        SELECT id, lot_id, customer_id, amount, bid_type, is_hidden, created_at
        FROM bids WHERE id = ?
    `

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, bidID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("bid", bidID)
	}
	return bid, err
}

// HideBid soft-cancels: the row is never deleted, only excluded from
// resolution.
func (r *MySQLBidRepository) HideBid(ctx context.Context, bidID string) error {
	query := `UPDATE bids SET is_hidden = TRUE WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, bidID)
	return err
}

func (r *MySQLBidRepository) HideAllBids(ctx context.Context, lotID string) error {
	query := `UPDATE bids SET is_hidden = TRUE WHERE lot_id = ?`
	_, err := r.db.ExecContext(ctx, query, lotID)
	return err
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var bidType string

	err := row.Scan(&bid.ID, &bid.LotID, &bid.CustomerID, &bid.Amount,
		&bidType, &bid.IsHidden, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}

	bid.Type = domain.BidType(bidType)
	return &bid, nil
}
