package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/mellowpine/coinpulse/internal/config"
)

// SQLite is for connecting and inserting data to sqlite.
type SQLite struct {
	DB  *sql.DB
	Cfg *config.SQLite
}

var sqlite SQLite

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS price_history (
    coin_id      TEXT    NOT NULL,
    ts_ms        INTEGER NOT NULL,
    price        REAL,
    market_cap   REAL,
    total_volume REAL,
    created_at   TEXT    NOT NULL,
    UNIQUE (coin_id, ts_ms)
);
`

// InitSQLite initializes sqlite connection with configured values.
func InitSQLite(cfg *config.SQLite) (*SQLite, error) {
	if sqlite.DB == nil {
		db, err := sql.Open("sqlite3", cfg.Path)
		if err != nil {
			return nil, err
		}

		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		err = db.PingContext(ctx)
		if err != nil {
			return nil, err
		}
		sqlite = SQLite{
			DB:  db,
			Cfg: cfg,
		}
	}
	return &sqlite, nil
}

// GetSQLite returns already prepared sqlite instance.
func GetSQLite() *SQLite {
	return &sqlite
}

// InitSchema creates the price history table if it does not exist.
// Safe to call on every run.
func (s *SQLite) InitSchema(appCtx context.Context) error {
	ctx, cancel := s.reqCtx(appCtx)
	defer cancel()
	_, err := s.DB.ExecContext(ctx, sqliteSchema)
	return err
}

// CommitPricePoints batch inserts input price point data to database inside
// one transaction, ignoring rows whose (coin_id, ts_ms) already exists.
// Returns the number of rows newly inserted.
func (s *SQLite) CommitPricePoints(appCtx context.Context, data []PricePoint) (int64, error) {
	ctx, cancel := s.reqCtx(appCtx)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO price_history(coin_id, ts_ms, price, market_cap, total_volume, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var inserted int64
	createdAt := time.Now().UTC().Format(storeTimestamp)
	for _, point := range data {
		res, err := stmt.ExecContext(ctx, point.CoinID, point.TsMs, point.Price, point.MarketCap, point.TotalVolume, createdAt)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		inserted += n
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// PricePoints returns stored rows of one coin within the inclusive boundary
// dates, ordered ascending by timestamp.
func (s *SQLite) PricePoints(appCtx context.Context, coinID string, from, to time.Time) ([]PricePoint, error) {
	ctx, cancel := s.reqCtx(appCtx)
	defer cancel()

	fromMs, toMs := DayRangeMs(from, to)
	rows, err := s.DB.QueryContext(ctx, "SELECT coin_id, ts_ms, price, market_cap, total_volume FROM price_history WHERE coin_id = ? AND ts_ms BETWEEN ? AND ? ORDER BY ts_ms", coinID, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []PricePoint{}
	for rows.Next() {
		var (
			point PricePoint
			price sql.NullFloat64
			mcap  sql.NullFloat64
			vol   sql.NullFloat64
		)
		if err = rows.Scan(&point.CoinID, &point.TsMs, &price, &mcap, &vol); err != nil {
			return nil, err
		}
		if price.Valid {
			point.Price = &price.Float64
		}
		if mcap.Valid {
			point.MarketCap = &mcap.Float64
		}
		if vol.Valid {
			point.TotalVolume = &vol.Float64
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

func (s *SQLite) reqCtx(appCtx context.Context) (context.Context, context.CancelFunc) {
	if s.Cfg.ReqTimeoutSec > 0 {
		return context.WithTimeout(appCtx, time.Duration(s.Cfg.ReqTimeoutSec)*time.Second)
	}
	return context.WithCancel(appCtx)
}
