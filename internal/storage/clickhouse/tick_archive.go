package clickhouse

import (
	"context"
	"fmt"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
)

// schemaTicks and schemaResolutions define the archive tables. MergeTree
// ordered by (exchange, symbol, timestamp_ms) matches the replay access
// pattern: full scans of one market key in time order.
const (
	schemaTicks = `
		CREATE TABLE IF NOT EXISTS ticks (
			exchange     String,
			symbol       String,
			price        Float64,
			volume       Float64,
			timestamp_ms UInt64,
			side         String
		) ENGINE = MergeTree()
		ORDER BY (exchange, symbol, timestamp_ms)
	`

	schemaResolutions = `
		CREATE TABLE IF NOT EXISTS prediction_resolutions (
			signal_id        UInt64,
			signal_type      String,
			exchange         String,
			symbol           String,
			entry_price      Float64,
			strength         Int32,
			registered_at_ms UInt64,
			resolved_at_ms   UInt64,
			profit_loss_pct  Float64,
			status           String
		) ENGINE = MergeTree()
		ORDER BY (exchange, symbol, resolved_at_ms)
	`
)

// TickArchive implements storage.TickArchive using ClickHouse.
type TickArchive struct {
	conn *Conn
}

// NewTickArchive creates a new TickArchive.
func NewTickArchive(conn *Conn) *TickArchive {
	return &TickArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchive = (*TickArchive)(nil)

// Migrate applies the archive schema.
func (s *TickArchive) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, schemaTicks); err != nil {
		return fmt.Errorf("migrate ticks: %w", err)
	}
	if err := s.conn.Exec(ctx, schemaResolutions); err != nil {
		return fmt.Errorf("migrate prediction_resolutions: %w", err)
	}
	return nil
}

// ArchiveTicks appends a batch of ticks.
func (s *TickArchive) ArchiveTicks(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			exchange, symbol, price, volume, timestamp_ms, side
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.Exchange, t.Symbol, t.Price, t.Volume,
			uint64(t.TimestampMs), string(t.Side),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ArchiveResolutions appends a batch of terminal predictions.
func (s *TickArchive) ArchiveResolutions(ctx context.Context, predictions []*domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO prediction_resolutions (
			signal_id, signal_type, exchange, symbol, entry_price,
			strength, registered_at_ms, resolved_at_ms, profit_loss_pct, status
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range predictions {
		err = batch.Append(
			p.Signal.ID, string(p.Signal.Type), p.Signal.Exchange, p.Signal.Symbol,
			p.EntryPrice, int32(p.Signal.Strength),
			uint64(p.RegisteredAtMs), uint64(p.ResolvedAtMs),
			p.ProfitLossPct, string(p.Status),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetTicksByTimeRange retrieves archived ticks for a market key within
// [start, end] (inclusive), ordered by timestamp ASC.
func (s *TickArchive) GetTicksByTimeRange(ctx context.Context, exchange, symbol string, start, end int64) ([]*domain.Tick, error) {
	query := `
		SELECT exchange, symbol, price, volume, timestamp_ms, side
		FROM ticks
		WHERE exchange = ? AND symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, exchange, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetResolutionsByKey retrieves archived resolutions for a market key,
// ordered by resolution time ASC.
func (s *TickArchive) GetResolutionsByKey(ctx context.Context, exchange, symbol string) ([]*domain.Prediction, error) {
	query := `
		SELECT signal_id, signal_type, exchange, symbol, entry_price,
		       strength, registered_at_ms, resolved_at_ms, profit_loss_pct, status
		FROM prediction_resolutions
		WHERE exchange = ? AND symbol = ?
		ORDER BY resolved_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, exchange, symbol)
	if err != nil {
		return nil, fmt.Errorf("query resolutions by key: %w", err)
	}
	defer rows.Close()

	return scanResolutions(rows)
}

// chRows abstracts driver.Rows for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanTicks scans multiple tick rows.
func scanTicks(rows chRows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var t domain.Tick
		var timestampMs uint64
		var side string

		err := rows.Scan(
			&t.Exchange, &t.Symbol, &t.Price, &t.Volume,
			&timestampMs, &side,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		t.TimestampMs = int64(timestampMs)
		t.Side = domain.Side(side)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}

// scanResolutions scans multiple resolution rows.
func scanResolutions(rows chRows) ([]*domain.Prediction, error) {
	var predictions []*domain.Prediction

	for rows.Next() {
		var p domain.Prediction
		var signalType, status string
		var strength int32
		var registeredAtMs, resolvedAtMs uint64

		err := rows.Scan(
			&p.Signal.ID, &signalType, &p.Signal.Exchange, &p.Signal.Symbol,
			&p.EntryPrice, &strength, &registeredAtMs, &resolvedAtMs,
			&p.ProfitLossPct, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan resolution row: %w", err)
		}

		p.Signal.Type = domain.SignalType(signalType)
		p.Signal.Strength = int(strength)
		p.Signal.Price = p.EntryPrice
		p.RegisteredAtMs = int64(registeredAtMs)
		p.ResolvedAtMs = int64(resolvedAtMs)
		p.Status = domain.PredictionStatus(status)
		p.Signal.Status = p.Status
		p.Signal.TimestampMs = int64(registeredAtMs)
		predictions = append(predictions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution rows: %w", err)
	}

	return predictions, nil
}
