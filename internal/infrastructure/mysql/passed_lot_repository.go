package mysql

import (
	"context"
	"database/sql"

	"lotbid/internal/domain"
)

type MySQLPassedLotRepository struct {
	db *sql.DB
}

func NewMySQLPassedLotRepository(db *sql.DB) *MySQLPassedLotRepository {
	return &MySQLPassedLotRepository{db: db}
}

func (r *MySQLPassedLotRepository) CreateRecord(ctx context.Context, record *domain.PassedLotRecord) error {
	query := `
        INSERT INTO passed_lots (id, lot_id, store_id, highest_bid, reserve_price, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.LotID, record.StoreID,
		record.HighestBid.String(), record.ReservePrice.String(), record.CreatedAt)
	return err
}
