package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func openPosition(id string) *domain.Position {
	return &domain.Position{
		ID:         id,
		Symbol:     "BTCUSDT",
		Side:       domain.SideLong,
		EntryPrice: 30000,
		Quantity:   0.1,
		Leverage:   5,
		StopLoss:   29000,
		TakeProfit: 33000,
		Status:     domain.StatusOpen,
		Margin:     600,
		OpenedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteInsertAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := openPosition("P1")
	pos.AdviceID = "A1"
	require.NoError(t, store.Insert(ctx, pos))

	found, err := store.FindOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "P1", found.ID)
	assert.Equal(t, domain.SideLong, found.Side)
	assert.Equal(t, 30000.0, found.EntryPrice)
	assert.Equal(t, 0.1, found.Quantity)
	assert.Equal(t, 5, found.Leverage)
	assert.Equal(t, 600.0, found.Margin)
	assert.Equal(t, "A1", found.AdviceID)
	assert.True(t, found.OpenedAt.Equal(pos.OpenedAt))

	byID, err := store.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, found.ID, byID.ID)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	none, err := store.FindOpen(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLiteSingleOpenConstraint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, openPosition("P1")))

	err := store.Insert(ctx, openPosition("P2"))
	assert.ErrorIs(t, err, domain.ErrPositionOpen)

	// A different symbol is unaffected.
	other := openPosition("P3")
	other.Symbol = "ETHUSDT"
	assert.NoError(t, store.Insert(ctx, other))
}

func TestSQLiteCloseWithAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := openPosition("P1")
	require.NoError(t, store.Insert(ctx, pos))

	closed := *pos
	closed.Status = domain.StatusClosed
	closed.ExitPrice = 33000
	closed.ExitTime = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	closed.RealizedPnL = 300
	closed.RealizedPnLPercent = 10

	adj := &domain.Adjustment{
		PositionID: pos.ID,
		Timestamp:  closed.ExitTime,
		Kind:       domain.AdjustmentClose,
		Rationale:  "TAKE_PROFIT",
	}
	require.NoError(t, store.UpdateOnClose(ctx, &closed, adj))

	stored, err := store.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, stored.Status)
	assert.Equal(t, 33000.0, stored.ExitPrice)
	assert.Equal(t, 300.0, stored.RealizedPnL)
	assert.Equal(t, 10.0, stored.RealizedPnLPercent)

	// The closed slot is free again.
	free, err := store.FindOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, free)
	assert.NoError(t, store.Insert(ctx, openPosition("P2")))

	adjs, err := store.ListAdjustments(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, domain.AdjustmentClose, adjs[0].Kind)
	assert.Equal(t, "TAKE_PROFIT", adjs[0].Rationale)

	// Closing again touches no rows.
	err = store.UpdateOnClose(ctx, &closed, nil)
	assert.ErrorIs(t, err, domain.ErrPositionClosed)
}

func TestSQLiteUpdateStops(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := openPosition("P1")
	require.NoError(t, store.Insert(ctx, pos))

	updated := *pos
	updated.StopLoss = 29500
	updated.TakeProfit = 34000
	adj := &domain.Adjustment{
		PositionID:    pos.ID,
		Timestamp:     time.Now().UTC(),
		Kind:          domain.AdjustmentAdjust,
		NewStopLoss:   29500,
		NewTakeProfit: 34000,
		Rationale:     "trailing the trend",
	}
	require.NoError(t, store.UpdateStops(ctx, &updated, adj))

	stored, err := store.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 29500.0, stored.StopLoss)
	assert.Equal(t, 34000.0, stored.TakeProfit)

	adjs, err := store.ListAdjustments(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, 29500.0, adjs[0].NewStopLoss)
	assert.Equal(t, 34000.0, adjs[0].NewTakeProfit)

	err = store.UpdateStops(ctx, &updated, nil)
	assert.NoError(t, err)

	closed := updated
	closed.Status = domain.StatusClosed
	closed.ExitTime = time.Now().UTC()
	require.NoError(t, store.UpdateOnClose(ctx, &closed, nil))

	err = store.UpdateStops(ctx, &updated, nil)
	assert.ErrorIs(t, err, domain.ErrPositionClosed)
}

func TestSQLiteListClosed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"P1", "P2", "P3"} {
		pos := openPosition(id)
		require.NoError(t, store.Insert(ctx, pos))

		closed := *pos
		closed.Status = domain.StatusClosed
		closed.ExitPrice = 31000
		closed.ExitTime = base.Add(time.Duration(i) * 24 * time.Hour)
		closed.RealizedPnL = float64(i * 100)
		require.NoError(t, store.UpdateOnClose(ctx, &closed, nil))
	}

	all, err := store.ListClosed(ctx, 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "P3", all[0].ID)
	assert.Equal(t, "P1", all[2].ID)

	limited, err := store.ListClosed(ctx, 2, time.Time{})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	windowed, err := store.ListClosed(ctx, 0, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, windowed, 2)
	assert.Equal(t, "P3", windowed[0].ID)
}

func TestSQLiteAdviceLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &domain.AdviceRecord{
		ID:                   "A1",
		Timestamp:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ObservedPrice:        30000,
		Direction:            domain.DirectionLong,
		PositionSizeFraction: 0.25,
		Leverage:             5,
		StopLossPercent:      0.01,
		TakeProfitPercent:    0.02,
		Rationale:            "breakout with volume",
	}
	require.NoError(t, store.SaveAdvice(ctx, rec))

	require.NoError(t, store.Insert(ctx, openPosition("P1")))
	require.NoError(t, store.LinkPosition(ctx, "A1", "P1"))

	linked, err := store.FindByPosition(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "A1", linked.ID)
	assert.Equal(t, 0.25, linked.PositionSizeFraction)
	assert.Equal(t, "breakout with volume", linked.Rationale)

	none, err := store.FindByPosition(ctx, "P-unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	err = store.LinkPosition(ctx, "A-unknown", "P1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	later := *rec
	later.ID = "A2"
	later.Timestamp = rec.Timestamp.Add(time.Hour)
	later.Direction = domain.DirectionNoPosition
	require.NoError(t, store.SaveAdvice(ctx, &later))

	recs, err := store.ListAdvice(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A2", recs[0].ID)
}

func TestSQLiteWallet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Balance(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.InitWallet(ctx, 10000))
	// A second init must not reset the balance.
	require.NoError(t, store.InitWallet(ctx, 99999))

	balance, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, balance)

	newBalance, err := store.ApplyPnL(ctx, 250.5)
	require.NoError(t, err)
	assert.Equal(t, 10250.5, newBalance)

	newBalance, err = store.ApplyPnL(ctx, -1000)
	require.NoError(t, err)
	assert.Equal(t, 9250.5, newBalance)
}

func TestSQLitePersistenceErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, openPosition("P1")))

	// Sentinel outcomes keep their own identity.
	err := store.Insert(ctx, openPosition("P2"))
	assert.ErrorIs(t, err, domain.ErrPositionOpen)
	assert.NotErrorIs(t, err, domain.ErrPersistence)

	require.NoError(t, store.Close())

	err = store.Insert(ctx, openPosition("P3"))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = store.FindOpen(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = store.ListClosed(ctx, 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	err = store.UpdateStops(ctx, openPosition("P1"), nil)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = store.Balance(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
