package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"lotbid/internal/domain"
)

type MySQLLotRepository struct {
	db *sql.DB
}

func NewMySQLLotRepository(db *sql.DB) *MySQLLotRepository {
	return &MySQLLotRepository{db: db}
}

const lotColumns = `id, store_id, owner_customer_id, title, starting_price, reserve_price,
        current_bid, is_bid_placed, reserve_met, winning_bid_customer_id, latest_bid_customer_id,
        status, disposition, start_datetime, end_datetime, created_at, updated_at`

func (r *MySQLLotRepository) CreateLot(ctx context.Context, lot *domain.Lot) error {
	query := `
        INSERT INTO lots (` + lotColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		lot.ID, lot.StoreID, lot.OwnerCustomerID, lot.Title,
		lot.StartingPrice, lot.ReservePrice, lot.CurrentBid,
		lot.IsBidPlaced, lot.ReserveMet, lot.WinningBidCustomerID, lot.LatestBidCustomerID,
		int(lot.Status), string(lot.Disposition),
		lot.StartDatetime, lot.EndDatetime, lot.CreatedAt, lot.UpdatedAt)
	return err
}

func (r *MySQLLotRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = ?`

	lot, err := scanLot(r.db.QueryRowContext(ctx, query, lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("lot", lotID)
	}
	return lot, err
}

func (r *MySQLLotRepository) UpdateLotBidState(ctx context.Context, lot *domain.Lot) error {
	query := `
        UPDATE lots SET current_bid = ?, is_bid_placed = ?, reserve_met = ?,
            winning_bid_customer_id = ?, latest_bid_customer_id = ?, status = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		lot.CurrentBid, lot.IsBidPlaced, lot.ReserveMet,
		lot.WinningBidCustomerID, lot.LatestBidCustomerID,
		int(lot.Status), lot.UpdatedAt, lot.ID)
	return err
}

func (r *MySQLLotRepository) ArchiveLot(ctx context.Context, lot *domain.Lot) error {
	query := `
        UPDATE lots SET status = ?, disposition = ?, current_bid = ?, reserve_met = ?,
            winning_bid_customer_id = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		int(domain.LotArchived), string(lot.Disposition), lot.CurrentBid, lot.ReserveMet,
		lot.WinningBidCustomerID, lot.UpdatedAt, lot.ID, int(domain.LotActive))
	return err
}

func (r *MySQLLotRepository) UpdateEndDatetime(ctx context.Context, lotID string, endDatetime time.Time) error {
	query := `UPDATE lots SET end_datetime = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, endDatetime, time.Now(), lotID)
	return err
}

func (r *MySQLLotRepository) GetEndedActiveLots(ctx context.Context, storeID string, before time.Time) ([]*domain.Lot, error) {
	query := `
        SELECT ` + lotColumns + `
        FROM lots WHERE store_id = ? AND status = ? AND end_datetime <= ?
        ORDER BY end_datetime ASC
    `

	rows, err := r.db.QueryContext(ctx, query, storeID, int(domain.LotActive), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *MySQLLotRepository) ResetLotBidState(ctx context.Context, lot *domain.Lot) error {
	return r.UpdateLotBidState(ctx, lot)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLot(row rowScanner) (*domain.Lot, error) {
	var lot domain.Lot
	var status int
	var disposition string

	err := row.Scan(
		&lot.ID, &lot.StoreID, &lot.OwnerCustomerID, &lot.Title,
		&lot.StartingPrice, &lot.ReservePrice, &lot.CurrentBid,
		&lot.IsBidPlaced, &lot.ReserveMet, &lot.WinningBidCustomerID, &lot.LatestBidCustomerID,
		&status, &disposition,
		&lot.StartDatetime, &lot.EndDatetime, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, err
	}

	lot.Status = domain.LotStatus(status)
	lot.Disposition = domain.LotDisposition(disposition)
	return &lot, nil
}
