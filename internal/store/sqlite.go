package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"etfviz/internal/market"

	_ "modernc.org/sqlite"
)

// SQLiteSeriesStore 把序列缓存落到本地 SQLite，重启后图表仍可热加载。
type SQLiteSeriesStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteSeriesStore(path string) (*SQLiteSeriesStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite 路径不能为空")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 失败: %w", err)
	}
	s := &SQLiteSeriesStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSeriesStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			period TEXT NOT NULL,
			open_time INTEGER NOT NULL,
			close_time INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			trades INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, period, open_time)
		)`,
		`CREATE TABLE IF NOT EXISTS series_meta (
			symbol TEXT NOT NULL,
			period TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			bar_count INTEGER NOT NULL,
			PRIMARY KEY (symbol, period)
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSeriesStore) Put(ctx context.Context, symbol, period string, ks []market.Candle, fetchedAt time.Time) error {
	if symbol == "" || period == "" {
		return fmt.Errorf("symbol/period 不能为空")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("series store 未初始化")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol=? AND period=?`, symbol, period); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, period, open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range ks {
		if _, err := stmt.ExecContext(ctx, symbol, period, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO series_meta (symbol, period, fetched_at, bar_count)
		VALUES (?, ?, ?, ?)`, symbol, period, fetchedAt.UnixMilli(), len(ks)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteSeriesStore) Get(ctx context.Context, symbol, period string) ([]market.Candle, time.Time, bool, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, time.Time{}, false, fmt.Errorf("series store 未初始化")
	}

	var fetchedAtMs int64
	var barCount int
	err := db.QueryRowContext(ctx, `SELECT fetched_at, bar_count FROM series_meta WHERE symbol=? AND period=?`, symbol, period).
		Scan(&fetchedAtMs, &barCount)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM candles WHERE symbol=? AND period=? ORDER BY open_time ASC`, symbol, period)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	defer rows.Close()

	out := make([]market.Candle, 0, barCount)
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades); err != nil {
			return nil, time.Time{}, false, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, false, err
	}
	return out, time.UnixMilli(fetchedAtMs), true, nil
}

func (s *SQLiteSeriesStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("series store 未初始化")
	}
	rows, err := db.QueryContext(ctx, `SELECT symbol, period FROM series_meta ORDER BY symbol, period`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var symbol, period string
		if err := rows.Scan(&symbol, &period); err != nil {
			return nil, err
		}
		out = append(out, key(symbol, period))
	}
	return out, rows.Err()
}

func (s *SQLiteSeriesStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
