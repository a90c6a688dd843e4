package csvimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockOrderRepo struct {
	stored []*domain.Order
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) (int64, error) {
	m.stored = append(m.stored, order)
	return int64(len(m.stored)), nil
}

func (m *mockOrderRepo) CreateBatch(ctx context.Context, orders []*domain.Order) (int, error) {
	m.stored = append(m.stored, orders...)
	return len(orders), nil
}

func (m *mockOrderRepo) FindUnprocessedByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return m.stored, nil
}

func (m *mockOrderRepo) FindByIDs(ctx context.Context, ids []int64) ([]*domain.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) LinkToTrade(ctx context.Context, orderIDs []int64, tradeID int64) error {
	return nil
}

func newTestImporter(t *testing.T) (*Importer, *mockOrderRepo) {
	t.Helper()
	repo := &mockOrderRepo{}
	imp, err := New(repo, &mockLogger{})
	require.NoError(t, err)
	return imp, repo
}

func TestImport_ParsesWellFormedRows(t *testing.T) {
	imp, repo := newTestImporter(t)

	csv := strings.Join([]string{
		"symbol,side,quantity,price,executed_at",
		"aapl,BUY,100,10.50,2024-03-04T10:00:00Z",
		"AAPL,sell,60,12,2024-03-04 10:01:00",
	}, "\n")

	res, err := imp.Import(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, repo.stored, 2)

	first := repo.stored[0]
	assert.Equal(t, "AAPL", first.Symbol, "symbols are normalized to upper case")
	assert.Equal(t, domain.Buy, first.Side)
	assert.Equal(t, int64(100), first.Quantity)
	assert.Equal(t, 10.50, first.Price)
	assert.Equal(t, int64(1), first.UserID)
	assert.Equal(t, res.BatchID, first.ImportBatchID)
	assert.True(t, first.ExecutedAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, domain.Sell, repo.stored[1].Side)
}

func TestImport_ColumnsMayBeReordered(t *testing.T) {
	imp, repo := newTestImporter(t)

	csv := strings.Join([]string{
		"executed_at,quantity,Side,SYMBOL,note,price",
		"2024-03-04T10:00:00Z,5,B,msft,ignored,400.25",
	}, "\n")

	res, err := imp.Import(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, repo.stored, 1)
	assert.Equal(t, "MSFT", repo.stored[0].Symbol)
	assert.Equal(t, domain.Buy, repo.stored[0].Side)
	assert.Equal(t, 400.25, repo.stored[0].Price)
}

func TestImport_SkipsBadRowsKeepsGoodOnes(t *testing.T) {
	imp, repo := newTestImporter(t)

	csv := strings.Join([]string{
		"symbol,side,quantity,price,executed_at",
		"AAPL,HOLD,100,10,2024-03-04T10:00:00Z",  // unknown side
		"AAPL,BUY,0,10,2024-03-04T10:00:00Z",     // non-positive quantity
		"AAPL,BUY,abc,10,2024-03-04T10:00:00Z",   // unparseable quantity
		",BUY,100,10,2024-03-04T10:00:00Z",       // empty symbol
		"AAPL,BUY,100,10,not-a-date",             // bad timestamp
		"TSLA,SELL,20,200,2024-03-04T10:05:00Z",  // good
	}, "\n")

	res, err := imp.Import(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 5, res.Skipped)
	require.Len(t, repo.stored, 1)
	assert.Equal(t, "TSLA", repo.stored[0].Symbol)
}

func TestImport_OptionalPriceAndTime(t *testing.T) {
	imp, repo := newTestImporter(t)

	// Rows without price or execution time are stored; the matcher
	// excludes them later rather than the importer rejecting them.
	csv := strings.Join([]string{
		"symbol,side,quantity",
		"AAPL,BUY,100",
	}, "\n")

	res, err := imp.Import(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, repo.stored, 1)
	assert.Equal(t, 0.0, repo.stored[0].Price)
	assert.True(t, repo.stored[0].ExecutedAt.IsZero())
	assert.False(t, repo.stored[0].Matchable())
}

func TestImport_MissingRequiredColumnFails(t *testing.T) {
	imp, _ := newTestImporter(t)

	csv := "symbol,quantity\nAAPL,100\n"
	_, err := imp.Import(context.Background(), 1, strings.NewReader(csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestImportFile(t *testing.T) {
	imp, repo := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "fills.csv")
	data := "symbol,side,quantity,price,executed_at\nAAPL,BUY,10,100,2024-03-04T10:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	res, err := imp.ImportFile(context.Background(), 2, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, repo.stored, 1)
	assert.Equal(t, int64(2), repo.stored[0].UserID)

	_, err = imp.ImportFile(context.Background(), 2, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
