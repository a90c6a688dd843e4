package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testOrder(userID int64, symbol string, side domain.OrderSide, qty int64, price float64, executedAt time.Time) *domain.Order {
	return &domain.Order{
		UserID:     userID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: executedAt,
	}
}

func TestRepository_CreateAndFindUnprocessedOrders(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	// Insert out of execution order to verify sorting.
	second := testOrder(1, "AAPL", domain.Sell, 60, 12.0, base.Add(time.Minute))
	first := testOrder(1, "AAPL", domain.Buy, 100, 10.0, base)
	otherUser := testOrder(2, "AAPL", domain.Buy, 5, 10.0, base)

	for _, o := range []*domain.Order{second, first, otherUser} {
		id, err := repo.Create(ctx, o)
		require.NoError(t, err)
		assert.NotZero(t, id)
	}

	orders, err := repo.FindUnprocessedByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID, "orders must come back in execution-time order")
	assert.Equal(t, second.ID, orders[1].ID)
	assert.Equal(t, domain.Buy, orders[0].Side)
	assert.Equal(t, int64(100), orders[0].Quantity)
	assert.Equal(t, 10.0, orders[0].Price)
	assert.True(t, orders[0].ExecutedAt.Equal(base))
}

func TestRepository_OrdersWithoutPriceOrTimeAreStored(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	bare := &domain.Order{UserID: 1, Symbol: "AAPL", Side: domain.Buy, Quantity: 10}
	_, err := repo.Create(ctx, bare)
	require.NoError(t, err)

	orders, err := repo.FindUnprocessedByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 0.0, orders[0].Price)
	assert.True(t, orders[0].ExecutedAt.IsZero())
	assert.False(t, orders[0].Matchable())
}

func TestRepository_CreateBatchSkipsDuplicateBrokerOrders(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	a := testOrder(1, "ETHUSDT", domain.Buy, 2, 3000.0, base)
	a.BrokerOrderID = "555"
	b := testOrder(1, "ETHUSDT", domain.Sell, 2, 3100.0, base.Add(time.Hour))
	b.BrokerOrderID = "556"

	inserted, err := repo.CreateBatch(ctx, []*domain.Order{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// A second sync fetching the same history must not duplicate rows.
	dup := testOrder(1, "ETHUSDT", domain.Buy, 2, 3000.0, base)
	dup.BrokerOrderID = "555"
	fresh := testOrder(1, "ETHUSDT", domain.Buy, 1, 3200.0, base.Add(2*time.Hour))
	fresh.BrokerOrderID = "557"

	inserted, err = repo.CreateBatch(ctx, []*domain.Order{dup, fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	orders, err := repo.FindUnprocessedByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestRepository_LinkToTradeExcludesFromUnprocessed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	o1 := testOrder(1, "AAPL", domain.Buy, 100, 10.0, base)
	o2 := testOrder(1, "AAPL", domain.Sell, 100, 12.0, base.Add(time.Minute))
	for _, o := range []*domain.Order{o1, o2} {
		_, err := repo.Create(ctx, o)
		require.NoError(t, err)
	}

	require.NoError(t, repo.LinkToTrade(ctx, []int64{o1.ID, o2.ID}, 42))

	orders, err := repo.FindUnprocessedByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, orders, "linked orders are processed")

	// Linking is idempotent, and a split order may link to a second trade.
	require.NoError(t, repo.LinkToTrade(ctx, []int64{o1.ID, o2.ID}, 42))
	require.NoError(t, repo.LinkToTrade(ctx, []int64{o2.ID}, 43))
}

func TestRepository_FindByIDs(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	o1 := testOrder(1, "AAPL", domain.Buy, 100, 10.0, base)
	o2 := testOrder(1, "MSFT", domain.Buy, 10, 400.0, base.Add(time.Minute))
	for _, o := range []*domain.Order{o1, o2} {
		_, err := repo.Create(ctx, o)
		require.NoError(t, err)
	}

	orders, err := repo.FindByIDs(ctx, []int64{o2.ID})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "MSFT", orders[0].Symbol)

	orders, err = repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRepository_TradeRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	open := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	trade := &domain.Trade{
		UserID:            1,
		Symbol:            "AAPL",
		Side:              domain.Long,
		Status:            domain.StatusOpen,
		OpenTime:          open,
		AvgEntryPrice:     10.0,
		OpenQuantity:      100,
		CloseQuantity:     40,
		AvgExitPrice:      12.0,
		OrdersCount:       2,
		Executions:        2,
		Quantity:          140,
		TimeInTrade:       3600,
		RemainingQuantity: 60,
		MarketSession:     domain.SessionRegular,
		HoldingPeriod:     domain.HoldingIntraday,
		CostBasis:         1000.0,
		Proceeds:          480.0,
		OrderIDs:          []int64{1, 2},
		Allocations: []domain.OrderAllocation{
			{OrderID: 2, QuantityAllocated: 40, TotalOrderQuantity: 70, Price: 12.0},
		},
	}

	id, err := repo.CreateTrade(ctx, trade)
	require.NoError(t, err)
	require.NoError(t, repo.LinkToTrade(ctx, trade.OrderIDs, id))

	loaded, err := repo.FindOpenByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.Long, got.Side)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.True(t, got.OpenTime.Equal(open))
	assert.True(t, got.CloseTime.IsZero())
	assert.Equal(t, int64(100), got.OpenQuantity)
	assert.Equal(t, int64(40), got.CloseQuantity)
	assert.Equal(t, 12.0, got.AvgExitPrice)
	assert.Equal(t, int64(60), got.RemainingQuantity)
	assert.Equal(t, domain.SessionRegular, got.MarketSession)
	assert.Equal(t, []int64{1, 2}, got.OrderIDs)
	require.Len(t, got.Allocations, 1)
	assert.Equal(t, trade.Allocations[0], got.Allocations[0])
}

func TestRepository_UpdateClosesTrade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	open := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	trade := &domain.Trade{
		UserID: 1, Symbol: "AAPL", Side: domain.Long, Status: domain.StatusOpen,
		OpenTime: open, AvgEntryPrice: 10.0, OpenQuantity: 100,
		MarketSession: domain.SessionRegular, HoldingPeriod: domain.HoldingIntraday,
	}
	id, err := repo.CreateTrade(ctx, trade)
	require.NoError(t, err)

	trade.Status = domain.StatusClosed
	trade.CloseTime = open.Add(2 * time.Hour)
	trade.AvgExitPrice = 11.6
	trade.CloseQuantity = 100
	trade.PNL = 160.0
	trade.TimeInTrade = 7200
	require.NoError(t, repo.Update(ctx, trade))

	stillOpen, err := repo.FindOpenByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, stillOpen)

	all, err := repo.FindByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusClosed, all[0].Status)
	assert.Equal(t, 160.0, all[0].PNL)
	assert.True(t, all[0].CloseTime.Equal(trade.CloseTime))
	assert.Equal(t, id, all[0].ID)
}

func TestRepository_UpdateMissingTradeFails(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.Update(ctx, &domain.Trade{
		ID: 999, Symbol: "AAPL", Side: domain.Long, Status: domain.StatusClosed,
		OpenTime: time.Now().UTC(),
		MarketSession: domain.SessionRegular, HoldingPeriod: domain.HoldingIntraday,
	})
	require.Error(t, err)
}
