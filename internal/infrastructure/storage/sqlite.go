package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

// SQLiteStore implements the position, advice and wallet repositories
// on a single embedded database. Open, adjust and close each run in one
// transaction together with their audit insert.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			quantity REAL NOT NULL,
			leverage INTEGER NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			exit_price REAL,
			exit_timestamp DATETIME,
			realized_pnl REAL,
			realized_pnl_percent REAL,
			margin REAL NOT NULL,
			advice_id TEXT,
			opened_at DATETIME NOT NULL
		);`,
		// One OPEN row per symbol, enforced in the engine so racing
		// writers cannot both claim the slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open ON positions(symbol) WHERE status = 'OPEN';`,
		`CREATE INDEX IF NOT EXISTS idx_positions_closed ON positions(status, exit_timestamp);`,
		`CREATE TABLE IF NOT EXISTS adjustments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL REFERENCES positions(id),
			timestamp DATETIME NOT NULL,
			kind TEXT NOT NULL,
			new_take_profit REAL,
			new_stop_loss REAL,
			rationale TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS advice_log (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			observed_price REAL NOT NULL,
			direction TEXT NOT NULL,
			position_size_fraction REAL NOT NULL,
			leverage INTEGER NOT NULL,
			stop_loss_percent REAL NOT NULL,
			take_profit_percent REAL NOT NULL,
			rationale TEXT NOT NULL,
			position_id TEXT REFERENCES positions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS wallet (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			balance REAL NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PositionRepository implementation

const positionColumns = `id, symbol, side, entry_price, quantity, leverage, stop_loss, take_profit,
	status, exit_price, exit_timestamp, realized_pnl, realized_pnl_percent, margin, advice_id, opened_at`

func (s *SQLiteStore) Insert(ctx context.Context, pos *domain.Position) error {
	query := `INSERT INTO positions (id, symbol, side, entry_price, quantity, leverage, stop_loss, take_profit, status, margin, advice_id, opened_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.Leverage,
		pos.StopLoss, pos.TakeProfit, pos.Status, pos.Margin, nullString(pos.AdviceID), pos.OpenedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrPositionOpen, pos.Symbol)
	}
	return persistence(err)
}

func (s *SQLiteStore) UpdateStops(ctx context.Context, pos *domain.Position, adj *domain.Adjustment) error {
	return persistence(s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE positions SET stop_loss = ?, take_profit = ? WHERE id = ? AND status = 'OPEN'`,
			pos.StopLoss, pos.TakeProfit, pos.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPositionClosed, pos.ID)
		}
		if adj != nil {
			return insertAdjustment(ctx, tx, adj)
		}
		return nil
	}))
}

func (s *SQLiteStore) UpdateOnClose(ctx context.Context, pos *domain.Position, adj *domain.Adjustment) error {
	return persistence(s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE positions SET status = 'CLOSED', exit_price = ?, exit_timestamp = ?, realized_pnl = ?, realized_pnl_percent = ?
			 WHERE id = ? AND status = 'OPEN'`,
			pos.ExitPrice, pos.ExitTime, pos.RealizedPnL, pos.RealizedPnLPercent, pos.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPositionClosed, pos.ID)
		}
		if adj != nil {
			return insertAdjustment(ctx, tx, adj)
		}
		return nil
	}))
}

func (s *SQLiteStore) RecordAdjustment(ctx context.Context, adj *domain.Adjustment) error {
	return persistence(s.inTx(ctx, func(tx *sql.Tx) error {
		return insertAdjustment(ctx, tx, adj)
	}))
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, adj *domain.Adjustment) error {
	var newTP, newSL any
	if adj.Kind == domain.AdjustmentAdjust {
		newTP, newSL = adj.NewTakeProfit, adj.NewStopLoss
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO adjustments (position_id, timestamp, kind, new_take_profit, new_stop_loss, rationale)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		adj.PositionID, adj.Timestamp, adj.Kind, newTP, newSL, nullString(adj.Rationale))
	return err
}

func (s *SQLiteStore) FindOpen(ctx context.Context, symbol string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE symbol = ? AND status = 'OPEN' LIMIT 1`, symbol)
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return pos, persistence(err)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %s", domain.ErrNotFound, id)
	}
	return pos, persistence(err)
}

func (s *SQLiteStore) ListClosed(ctx context.Context, limit int, since time.Time) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = 'CLOSED'`
	args := []any{}
	if !since.IsZero() {
		query += ` AND exit_timestamp >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY exit_timestamp DESC LIMIT ?`
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, persistence(err)
		}
		positions = append(positions, pos)
	}
	return positions, persistence(rows.Err())
}

func (s *SQLiteStore) ListAdjustments(ctx context.Context, positionID string) ([]*domain.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position_id, timestamp, kind, new_take_profit, new_stop_loss, rationale
		 FROM adjustments WHERE position_id = ? ORDER BY id`, positionID)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var adjs []*domain.Adjustment
	for rows.Next() {
		var a domain.Adjustment
		var newTP, newSL sql.NullFloat64
		var rationale sql.NullString
		if err := rows.Scan(&a.ID, &a.PositionID, &a.Timestamp, &a.Kind, &newTP, &newSL, &rationale); err != nil {
			return nil, persistence(err)
		}
		a.NewTakeProfit = newTP.Float64
		a.NewStopLoss = newSL.Float64
		a.Rationale = rationale.String
		adjs = append(adjs, &a)
	}
	return adjs, persistence(rows.Err())
}

// AdviceRepository implementation

func (s *SQLiteStore) SaveAdvice(ctx context.Context, rec *domain.AdviceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO advice_log (id, timestamp, observed_price, direction, position_size_fraction, leverage, stop_loss_percent, take_profit_percent, rationale, position_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.ObservedPrice, rec.Direction, rec.PositionSizeFraction,
		rec.Leverage, rec.StopLossPercent, rec.TakeProfitPercent, rec.Rationale, nullString(rec.PositionID))
	return persistence(err)
}

func (s *SQLiteStore) LinkPosition(ctx context.Context, adviceID, positionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE advice_log SET position_id = ? WHERE id = ?`, positionID, adviceID)
	if err != nil {
		return persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: advice %s", domain.ErrNotFound, adviceID)
	}
	return nil
}

func (s *SQLiteStore) FindByPosition(ctx context.Context, positionID string) (*domain.AdviceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, observed_price, direction, position_size_fraction, leverage, stop_loss_percent, take_profit_percent, rationale, position_id
		 FROM advice_log WHERE position_id = ? ORDER BY timestamp LIMIT 1`, positionID)
	rec, err := scanAdvice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, persistence(err)
}

func (s *SQLiteStore) ListAdvice(ctx context.Context, limit int) ([]*domain.AdviceRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, observed_price, direction, position_size_fraction, leverage, stop_loss_percent, take_profit_percent, rationale, position_id
		 FROM advice_log ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var recs []*domain.AdviceRecord
	for rows.Next() {
		rec, err := scanAdvice(rows)
		if err != nil {
			return nil, persistence(err)
		}
		recs = append(recs, rec)
	}
	return recs, persistence(rows.Err())
}

// WalletRepository implementation

// InitWallet seeds the paper trading balance once; an existing wallet
// is left alone.
func (s *SQLiteStore) InitWallet(ctx context.Context, initialBalance float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallet (id, balance) VALUES (1, ?) ON CONFLICT(id) DO NOTHING`, initialBalance)
	return persistence(err)
}

func (s *SQLiteStore) Balance(ctx context.Context) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM wallet WHERE id = 1`).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: wallet not initialized", domain.ErrNotFound)
	}
	return balance, persistence(err)
}

func (s *SQLiteStore) ApplyPnL(ctx context.Context, delta float64) (float64, error) {
	var balance float64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE wallet SET balance = balance + ? WHERE id = 1`, delta); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT balance FROM wallet WHERE id = 1`).Scan(&balance)
	})
	return balance, persistence(err)
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	var exitPrice, pnl, pnlPct sql.NullFloat64
	var exitTime sql.NullTime
	var adviceID sql.NullString

	err := row.Scan(&p.ID, &p.Symbol, &p.Side, &p.EntryPrice, &p.Quantity, &p.Leverage,
		&p.StopLoss, &p.TakeProfit, &p.Status, &exitPrice, &exitTime, &pnl, &pnlPct,
		&p.Margin, &adviceID, &p.OpenedAt)
	if err != nil {
		return nil, err
	}
	p.ExitPrice = exitPrice.Float64
	p.ExitTime = exitTime.Time
	p.RealizedPnL = pnl.Float64
	p.RealizedPnLPercent = pnlPct.Float64
	p.AdviceID = adviceID.String
	return &p, nil
}

func scanAdvice(row rowScanner) (*domain.AdviceRecord, error) {
	var r domain.AdviceRecord
	var positionID sql.NullString

	err := row.Scan(&r.ID, &r.Timestamp, &r.ObservedPrice, &r.Direction, &r.PositionSizeFraction,
		&r.Leverage, &r.StopLossPercent, &r.TakeProfitPercent, &r.Rationale, &positionID)
	if err != nil {
		return nil, err
	}
	r.PositionID = positionID.String
	return &r, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// persistence classifies driver and connection failures under
// domain.ErrPersistence. Domain sentinels already assigned by the
// store pass through untouched.
func persistence(err error) error {
	if err == nil ||
		errors.Is(err, domain.ErrPositionOpen) ||
		errors.Is(err, domain.ErrPositionClosed) ||
		errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
