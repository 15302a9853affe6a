package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/symbol"
)

const (
	putAlertSQL = `INSERT INTO alerts (
        alert_id,
        ts,
        alert_name,
        symbol,
        limit_price,
        capital_percent,
        lot_size,
        order_slicing_value,
        total_quantity,
        processed,
        raw_payload,
        index_name,
        expiry_date,
        option_type,
        strike_price,
        symbol_parsed,
        expiry
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
    )
    ON CONFLICT (alert_id) DO UPDATE
    SET
        ts                  = EXCLUDED.ts,
        alert_name          = EXCLUDED.alert_name,
        symbol              = EXCLUDED.symbol,
        limit_price         = EXCLUDED.limit_price,
        capital_percent     = EXCLUDED.capital_percent,
        lot_size            = EXCLUDED.lot_size,
        order_slicing_value = EXCLUDED.order_slicing_value,
        total_quantity      = EXCLUDED.total_quantity,
        processed           = EXCLUDED.processed,
        raw_payload         = EXCLUDED.raw_payload,
        index_name          = EXCLUDED.index_name,
        expiry_date         = EXCLUDED.expiry_date,
        option_type         = EXCLUDED.option_type,
        strike_price        = EXCLUDED.strike_price,
        symbol_parsed       = EXCLUDED.symbol_parsed,
        expiry              = EXCLUDED.expiry;`

	selectAlertColumns = `SELECT
        alert_id,
        ts,
        alert_name,
        symbol,
        limit_price,
        capital_percent,
        lot_size,
        order_slicing_value,
        total_quantity,
        processed,
        raw_payload,
        index_name,
        expiry_date,
        option_type,
        strike_price,
        symbol_parsed,
        expiry
    FROM alerts`

	getAlertSQL = selectAlertColumns + `
    WHERE alert_id = $1;`

	scanAlertsSQL = selectAlertColumns + `
    LIMIT $1;`

	countAlertsSQL = `SELECT COUNT(*) FROM alerts;`

	deleteExpiredSQL = `DELETE FROM alerts WHERE expiry < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Postgres stores alerts in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a Postgres backend.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (p *Postgres) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := p.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (p *Postgres) getPool() (*pgxpool.Pool, error) {
	if p == nil || p.pool == nil {
		return nil, ErrNotConfigured
	}
	return p.pool, nil
}

// Put inserts the item, replacing any row with the same alert id.
func (p *Postgres) Put(ctx context.Context, item Item) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(item.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}

	_, execErr := pool.Exec(ctx, putAlertSQL,
		item.AlertID,
		item.Timestamp,
		item.AlertName,
		item.Symbol,
		item.LimitPrice,
		item.CapitalPercent,
		item.LotSize,
		item.OrderSlicingValue,
		item.TotalQuantity,
		item.Processed,
		raw,
		nullable(item.IndexName),
		nullable(item.ExpiryDate),
		nullable(string(item.OptionType)),
		nullable(item.StrikePrice),
		item.SymbolParsed,
		item.Expiry,
	)
	if execErr != nil {
		return fmt.Errorf("put alert: %w", execErr)
	}
	return nil
}

// Get loads a single alert by id.
func (p *Postgres) Get(ctx context.Context, alertID string) (Item, error) {
	pool, err := p.getPool()
	if err != nil {
		return Item{}, err
	}

	rows, err := pool.Query(ctx, getAlertSQL, alertID)
	if err != nil {
		return Item{}, fmt.Errorf("get alert: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Item{}, fmt.Errorf("get alert: %w", rows.Err())
		}
		return Item{}, ErrNotFound
	}
	return scanItem(rows)
}

// Scan lists up to limit alerts in table order.
func (p *Postgres) Scan(ctx context.Context, limit int) ([]Item, error) {
	pool, err := p.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, scanAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("scan alerts: %w", queryErr)
	}
	defer rows.Close()

	items := make([]Item, 0, limit)
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// Count counts stored alerts, including expired rows not yet purged.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	pool, err := p.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAlertsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts: %w", scanErr)
	}
	return count, nil
}

// DeleteExpired removes alerts whose expiry precedes before.
func (p *Postgres) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	pool, err := p.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteExpiredSQL, before)
	if execErr != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanItem(rows pgx.Rows) (Item, error) {
	var (
		item        Item
		raw         []byte
		indexName   sql.NullString
		expiryDate  sql.NullString
		optionType  sql.NullString
		strikePrice sql.NullString
	)

	if err := rows.Scan(
		&item.AlertID,
		&item.Timestamp,
		&item.AlertName,
		&item.Symbol,
		&item.LimitPrice,
		&item.CapitalPercent,
		&item.LotSize,
		&item.OrderSlicingValue,
		&item.TotalQuantity,
		&item.Processed,
		&raw,
		&indexName,
		&expiryDate,
		&optionType,
		&strikePrice,
		&item.SymbolParsed,
		&item.Expiry,
	); err != nil {
		return Item{}, err
	}

	payload, err := decodePayload(raw)
	if err != nil {
		return Item{}, fmt.Errorf("decode raw payload for %s: %w", item.AlertID, err)
	}
	item.RawPayload = payload
	item.IndexName = indexName.String
	item.ExpiryDate = expiryDate.String
	item.OptionType = symbol.OptionType(optionType.String)
	item.StrikePrice = strikePrice.String

	return item, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// decodePayload restores a raw payload keeping numbers as their original text.
func decodePayload(raw []byte) (alert.Payload, error) {
	if len(raw) == 0 {
		return alert.Payload{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload alert.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

var (
	_ Backend        = (*Postgres)(nil)
	_ ExpiredDeleter = (*Postgres)(nil)
	_ AdvisoryLocker = (*Postgres)(nil)
)
