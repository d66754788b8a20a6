package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mellowpine/coinpulse/internal/config"
)

// MySQL is for connecting and inserting data to mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

var mysql MySQL

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS price_history (
    coin_id      VARCHAR(128) NOT NULL,
    ts_ms        BIGINT       NOT NULL,
    price        DOUBLE,
    market_cap   DOUBLE,
    total_volume DOUBLE,
    created_at   VARCHAR(32)  NOT NULL,
    UNIQUE KEY uq_coin_ts (coin_id, ts_ms)
)
`

// InitMySQL initializes mysql connection with configured values.
func InitMySQL(cfg *config.MySQL) (*MySQL, error) {
	if mysql.DB == nil {
		dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema
		db, err := sql.Open("mysql",
			dataSourceName)
		if err != nil {
			return nil, err
		}
		db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)

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
		mysql = MySQL{
			DB:  db,
			Cfg: cfg,
		}
	}
	return &mysql, nil
}

// GetMySQL returns already prepared mysql instance.
func GetMySQL() *MySQL {
	return &mysql
}

// InitSchema creates the price history table if it does not exist.
// Safe to call on every run.
func (m *MySQL) InitSchema(appCtx context.Context) error {
	ctx, cancel := m.reqCtx(appCtx)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, mysqlSchema)
	return err
}

// CommitPricePoints batch inserts input price point data to database with a
// single INSERT IGNORE statement, so rows whose (coin_id, ts_ms) already
// exists are silently skipped. Returns the number of rows newly inserted.
func (m *MySQL) CommitPricePoints(appCtx context.Context, data []PricePoint) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	ctx, cancel := m.reqCtx(appCtx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("INSERT IGNORE INTO price_history(coin_id, ts_ms, price, market_cap, total_volume, created_at) VALUES ")
	args := make([]interface{}, 0, len(data)*6)
	createdAt := time.Now().UTC().Format(storeTimestamp)
	for i, point := range data {
		if i == 0 {
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
		} else {
			sb.WriteString(",(?, ?, ?, ?, ?, ?)")
		}
		args = append(args, point.CoinID, point.TsMs, point.Price, point.MarketCap, point.TotalVolume, createdAt)
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// PricePoints returns stored rows of one coin within the inclusive boundary
// dates, ordered ascending by timestamp.
func (m *MySQL) PricePoints(appCtx context.Context, coinID string, from, to time.Time) ([]PricePoint, error) {
	ctx, cancel := m.reqCtx(appCtx)
	defer cancel()

	fromMs, toMs := DayRangeMs(from, to)
	rows, err := m.DB.QueryContext(ctx, "SELECT coin_id, ts_ms, price, market_cap, total_volume FROM price_history WHERE coin_id = ? AND ts_ms BETWEEN ? AND ? ORDER BY ts_ms", coinID, fromMs, toMs)
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

func (m *MySQL) reqCtx(appCtx context.Context) (context.Context, context.CancelFunc) {
	if m.Cfg.ReqTimeoutSec > 0 {
		return context.WithTimeout(appCtx, time.Duration(m.Cfg.ReqTimeoutSec)*time.Second)
	}
	return context.WithCancel(appCtx)
}
