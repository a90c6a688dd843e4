package csvimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"

	"github.com/google/uuid"
)

// Importer parses uploaded CSV files of order fills into raw orders.
// Rows missing a price or execution time are stored anyway; the trade
// builder skips them during matching.
type Importer struct {
	orderRepo ports.OrderRepository
	logger    ports.Logger
}

// Result summarizes one CSV import.
type Result struct {
	BatchID  string // Upload batch identifier stamped on every stored order
	Imported int    // Rows stored
	Skipped  int    // Rows rejected (bad side, quantity, or column count)
}

// Expected header columns. Order does not matter and extra columns are ignored.
const (
	colSymbol     = "symbol"
	colSide       = "side"
	colQuantity   = "quantity"
	colPrice      = "price"
	colExecutedAt = "executed_at"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// New creates a CSV importer.
func New(orderRepo ports.OrderRepository, logger ports.Logger) (*Importer, error) {
	if orderRepo == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for CSV importer")
	}
	return &Importer{orderRepo: orderRepo, logger: logger}, nil
}

// ImportFile reads a CSV file of order fills and stores them for the user.
func (i *Importer) ImportFile(ctx context.Context, userID int64, path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file '%s': %w", path, err)
	}
	defer file.Close()
	return i.Import(ctx, userID, file)
}

// Import reads CSV order fills from r and stores them for the user.
// The first row must be a header naming at least symbol, side, quantity.
func (i *Importer) Import(ctx context.Context, userID int64, r io.Reader) (*Result, error) {
	op := "csvimport.Import"
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	res := &Result{BatchID: uuid.NewString()}
	var orders []*domain.Order
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			i.logger.Warn(ctx, op+": skipping unreadable row", map[string]interface{}{"line": line, "error": err.Error()})
			res.Skipped++
			continue
		}

		order, err := parseRow(record, cols)
		if err != nil {
			i.logger.Warn(ctx, op+": skipping invalid row", map[string]interface{}{"line": line, "error": err.Error()})
			res.Skipped++
			continue
		}
		order.UserID = userID
		order.ImportBatchID = res.BatchID
		orders = append(orders, order)
	}

	inserted, err := i.orderRepo.CreateBatch(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported orders: %w", err)
	}
	res.Imported = inserted

	i.logger.Info(ctx, op+": import finished", map[string]interface{}{
		"userID": userID, "batchID": res.BatchID, "imported": res.Imported, "skipped": res.Skipped,
	})
	return res, nil
}

// mapColumns resolves header names to column indexes, case-insensitively.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, required := range []string{colSymbol, colSide, colQuantity} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing required column '%s': %w", required, ports.ErrInvalidRequest)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (*domain.Order, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	symbol := strings.ToUpper(field(colSymbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	var side domain.OrderSide
	switch strings.ToUpper(field(colSide)) {
	case "BUY", "B":
		side = domain.Buy
	case "SELL", "S":
		side = domain.Sell
	default:
		return nil, fmt.Errorf("unknown side %q", field(colSide))
	}

	qty, err := strconv.ParseInt(field(colQuantity), 10, 64)
	if err != nil || qty <= 0 {
		return nil, fmt.Errorf("invalid quantity %q", field(colQuantity))
	}

	// Price and execution time are optional at ingest time; the matcher
	// excludes orders that lack them.
	var price float64
	if raw := field(colPrice); raw != "" {
		price, err = strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("invalid price %q", raw)
		}
	}

	var executedAt time.Time
	if raw := field(colExecutedAt); raw != "" {
		executedAt, err = parseTime(raw)
		if err != nil {
			return nil, err
		}
	}

	return &domain.Order{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: executedAt,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
