package services

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockwatch_backend/models"

	_ "github.com/mattn/go-sqlite3"
)

// CatalogStore mirrors the ticker catalog into a local SQLite file so the
// catalog survives restarts and can serve reads when Postgres is unavailable
type CatalogStore struct {
	db *sql.DB
}

// OpenCatalogStore opens (or creates) the local catalog database
func OpenCatalogStore(path string) (*CatalogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS stocks (
		symbol     TEXT PRIMARY KEY,
		name       TEXT,
		exchange   TEXT,
		status     TEXT,
		updated_at TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return &CatalogStore{db: db}, nil
}

// SaveCatalog upserts the given stocks into the mirror in one transaction
func (s *CatalogStore) SaveCatalog(stocks []models.Stock) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stocks (symbol, name, exchange, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			status = excluded.status,
			updated_at = excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for _, stock := range stocks {
		if _, err := stmt.Exec(stock.Symbol, stock.Name, stock.Exchange, stock.Status, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert %s: %w", stock.Symbol, err)
		}
	}

	return tx.Commit()
}

// LoadCatalog reads the mirrored catalog, active stocks first by symbol
func (s *CatalogStore) LoadCatalog() ([]models.Stock, error) {
	rows, err := s.db.Query(`SELECT symbol, name, exchange, status FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var stock models.Stock
		if err := rows.Scan(&stock.Symbol, &stock.Name, &stock.Exchange, &stock.Status); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		stocks = append(stocks, stock)
	}

	return stocks, rows.Err()
}

// SearchCatalog finds mirrored stocks whose symbol or name matches the query
func (s *CatalogStore) SearchCatalog(query string, limit int) ([]models.Stock, error) {
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT symbol, name, exchange, status FROM stocks
		WHERE symbol LIKE ? OR name LIKE ?
		ORDER BY symbol LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var stock models.Stock
		if err := rows.Scan(&stock.Symbol, &stock.Name, &stock.Exchange, &stock.Status); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		stocks = append(stocks, stock)
	}

	return stocks, rows.Err()
}

// Count returns the number of mirrored symbols
func (s *CatalogStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM stocks`).Scan(&count)
	return count, err
}

// Close closes the underlying database
func (s *CatalogStore) Close() error {
	return s.db.Close()
}
