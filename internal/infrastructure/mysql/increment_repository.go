package mysql

import (
	"context"
	"database/sql"

	"lotbid/internal/domain"
)

type MySQLIncrementBandRepository struct {
	db *sql.DB
}

func NewMySQLIncrementBandRepository(db *sql.DB) *MySQLIncrementBandRepository {
	return &MySQLIncrementBandRepository{db: db}
}

func (r *MySQLIncrementBandRepository) GetBands(ctx context.Context, storeID string) ([]domain.IncrementBand, error) {
	query := `
        SELECT id, store_id, from_amount, to_amount, increment
        FROM increment_bands
        WHERE store_id = ?
        ORDER BY from_amount ASC
    `

	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bands []domain.IncrementBand
	for rows.Next() {
		var band domain.IncrementBand
		err := rows.Scan(&band.ID, &band.StoreID, &band.From, &band.To, &band.Increment)
		if err != nil {
			return nil, err
		}
		bands = append(bands, band)
	}
	return bands, rows.Err()
}

// ReplaceBands swaps the store's whole band configuration atomically. Bands
// are only edited administratively between auctions.
func (r *MySQLIncrementBandRepository) ReplaceBands(ctx context.Context, storeID string, bands []domain.IncrementBand) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM increment_bands WHERE store_id = ?`, storeID); err != nil {
		return err
	}

	query := `
        INSERT INTO increment_bands (id, store_id, from_amount, to_amount, increment)
        VALUES (?, ?, ?, ?, ?)
    `
	for _, band := range bands {
		if _, err := tx.ExecContext(ctx, query,
			band.ID, storeID, band.From, band.To, band.Increment); err != nil {
			return err
		}
	}

	return tx.Commit()
}
