package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.OrderRepository and ports.TradeRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradejournal.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between ingest and build runs.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: A proper migration tool is recommended once the schema settles.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL DEFAULT NULL,
		executed_at TIMESTAMP DEFAULT NULL,
		broker_order_id TEXT DEFAULT NULL,
		import_batch_id TEXT DEFAULT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		status TEXT NOT NULL,
		open_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP DEFAULT NULL,
		avg_entry_price REAL NOT NULL,
		avg_exit_price REAL DEFAULT NULL,
		open_quantity INTEGER NOT NULL,
		close_quantity INTEGER NOT NULL,
		pnl REAL NOT NULL,
		orders_count INTEGER NOT NULL,
		executions INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		time_in_trade INTEGER NOT NULL,
		remaining_quantity INTEGER NOT NULL,
		market_session TEXT NOT NULL,
		holding_period TEXT NOT NULL,
		cost_basis REAL NOT NULL,
		proceeds REAL NOT NULL
	);

	-- Junction between orders and trades. An order split across a close
	-- and a reversal references both resulting trades.
	CREATE TABLE IF NOT EXISTS trade_orders (
		trade_id INTEGER NOT NULL,
		order_id INTEGER NOT NULL,
		UNIQUE (trade_id, order_id)
	);

	CREATE TABLE IF NOT EXISTS trade_allocations (
		trade_id INTEGER NOT NULL,
		order_id INTEGER NOT NULL,
		quantity_allocated INTEGER NOT NULL,
		total_order_quantity INTEGER NOT NULL,
		price REAL NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_broker_order_id
		ON orders (user_id, broker_order_id) WHERE broker_order_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_orders_user_executed ON orders (user_id, executed_at);
	CREATE INDEX IF NOT EXISTS idx_trades_user_status ON trades (user_id, status);
	CREATE INDEX IF NOT EXISTS idx_trade_orders_order ON trade_orders (order_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- OrderRepository Implementation ---

// Create saves a new order and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, order *domain.Order) (int64, error) {
	const query = `
	INSERT INTO orders (user_id, symbol, side, quantity, price, executed_at, broker_order_id, import_batch_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, query,
		order.UserID, order.Symbol, order.Side, order.Quantity,
		nullFloat(order.Price), nullTime(order.ExecutedAt),
		nullString(order.BrokerOrderID), nullString(order.ImportBatchID), createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order for symbol %s: %w", order.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", order.Symbol, err)
	}
	order.ID = id
	return id, nil
}

// CreateBatch saves a batch of orders in one transaction, skipping rows
// that duplicate an already stored broker order ID. Returns the number
// of rows actually inserted.
func (r *Repository) CreateBatch(ctx context.Context, orders []*domain.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin order batch transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT OR IGNORE INTO orders (user_id, symbol, side, quantity, price, executed_at, broker_order_id, import_batch_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	inserted := 0
	now := time.Now().UTC()
	for _, order := range orders {
		createdAt := order.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		result, err := tx.ExecContext(ctx, query,
			order.UserID, order.Symbol, order.Side, order.Quantity,
			nullFloat(order.Price), nullTime(order.ExecutedAt),
			nullString(order.BrokerOrderID), nullString(order.ImportBatchID), createdAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert order for symbol %s: %w", order.Symbol, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected for order %s: %w", order.Symbol, err)
		}
		if rows > 0 {
			id, err := result.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", order.Symbol, err)
			}
			order.ID = id
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit order batch: %w", err)
	}
	r.logger.Debug(ctx, "Order batch stored", map[string]interface{}{"received": len(orders), "inserted": inserted})
	return inserted, nil
}

// FindUnprocessedByUser retrieves all of a user's orders not yet linked
// to any trade, ordered by execution time ascending. Orders without an
// execution time sort first and are skipped by the matcher.
func (r *Repository) FindUnprocessedByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	const query = `
	SELECT id, user_id, symbol, side, quantity, COALESCE(price, 0), executed_at,
	       COALESCE(broker_order_id, ''), COALESCE(import_batch_id, ''), created_at
	FROM orders o
	WHERE o.user_id = ?
	  AND NOT EXISTS (SELECT 1 FROM trade_orders j WHERE j.order_id = o.id)
	ORDER BY o.executed_at ASC, o.id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order during FindUnprocessedByUser: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// FindByIDs retrieves orders by their unique IDs.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
	SELECT id, user_id, symbol, side, quantity, COALESCE(price, 0), executed_at,
	       COALESCE(broker_order_id, ''), COALESCE(import_batch_id, ''), created_at
	FROM orders WHERE id IN (%s) ORDER BY executed_at ASC, id ASC`, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by IDs: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, len(ids))
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order during FindByIDs: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// LinkToTrade links every given order to the trade that consumed it.
// INSERT OR IGNORE keeps the operation idempotent and lets a split
// order reference two trades.
func (r *Repository) LinkToTrade(ctx context.Context, orderIDs []int64, tradeID int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction for trade %d: %w", tradeID, err)
	}
	defer tx.Rollback()

	const query = `INSERT OR IGNORE INTO trade_orders (trade_id, order_id) VALUES (?, ?)`
	for _, orderID := range orderIDs {
		if _, err := tx.ExecContext(ctx, query, tradeID, orderID); err != nil {
			return fmt.Errorf("failed to link order %d to trade %d: %w", orderID, tradeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit links for trade %d: %w", tradeID, err)
	}
	return nil
}

// --- TradeRepository Implementation ---

// Create saves a new trade record (including its allocations) and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT INTO trades (user_id, symbol, side, status, open_time, close_time,
	                    avg_entry_price, avg_exit_price, open_quantity, close_quantity, pnl,
	                    orders_count, executions, quantity, time_in_trade, remaining_quantity,
	                    market_session, holding_period, cost_basis, proceeds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		trade.UserID, trade.Symbol, trade.Side, trade.Status, trade.OpenTime, nullTime(trade.CloseTime),
		trade.AvgEntryPrice, nullFloat(trade.AvgExitPrice), trade.OpenQuantity, trade.CloseQuantity, trade.PNL,
		trade.OrdersCount, trade.Executions, trade.Quantity, trade.TimeInTrade, trade.RemainingQuantity,
		trade.MarketSession, trade.HoldingPeriod, trade.CostBasis, trade.Proceeds)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for symbol %s: %w", trade.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Symbol, err)
	}

	if err := insertAllocations(ctx, tx, id, trade.Allocations); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trade for symbol %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "status": trade.Status})
	return id, nil
}

// Update rewrites an existing trade record and its allocations in place.
func (r *Repository) Update(ctx context.Context, trade *domain.Trade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin trade update transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	UPDATE trades
	SET symbol = ?, side = ?, status = ?, open_time = ?, close_time = ?,
	    avg_entry_price = ?, avg_exit_price = ?, open_quantity = ?, close_quantity = ?, pnl = ?,
	    orders_count = ?, executions = ?, quantity = ?, time_in_trade = ?, remaining_quantity = ?,
	    market_session = ?, holding_period = ?, cost_basis = ?, proceeds = ?
	WHERE id = ?`

	result, err := tx.ExecContext(ctx, query,
		trade.Symbol, trade.Side, trade.Status, trade.OpenTime, nullTime(trade.CloseTime),
		trade.AvgEntryPrice, nullFloat(trade.AvgExitPrice), trade.OpenQuantity, trade.CloseQuantity, trade.PNL,
		trade.OrdersCount, trade.Executions, trade.Quantity, trade.TimeInTrade, trade.RemainingQuantity,
		trade.MarketSession, trade.HoldingPeriod, trade.CostBasis, trade.Proceeds,
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w", trade.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trade_allocations WHERE trade_id = ?`, trade.ID); err != nil {
		return fmt.Errorf("failed to clear allocations for trade %d: %w", trade.ID, err)
	}
	if err := insertAllocations(ctx, tx, trade.ID, trade.Allocations); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update for trade %d: %w", trade.ID, err)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "status": trade.Status})
	return nil
}

// FindOpenByUser retrieves all OPEN trades for a user, including their
// order IDs and allocations so the position tracker can reconstruct
// state from them.
func (r *Repository) FindOpenByUser(ctx context.Context, userID int64) ([]*domain.Trade, error) {
	return r.findTrades(ctx, `WHERE user_id = ? AND status = ? ORDER BY open_time ASC`, userID, domain.StatusOpen)
}

// FindByUser retrieves all trades for a user, most recently opened first.
func (r *Repository) FindByUser(ctx context.Context, userID int64) ([]*domain.Trade, error) {
	return r.findTrades(ctx, `WHERE user_id = ? ORDER BY open_time DESC`, userID)
}

func (r *Repository) findTrades(ctx context.Context, where string, args ...interface{}) ([]*domain.Trade, error) {
	query := `
	SELECT id, user_id, symbol, side, status, open_time, close_time,
	       avg_entry_price, COALESCE(avg_exit_price, 0), open_quantity, close_quantity, pnl,
	       orders_count, executions, quantity, time_in_trade, remaining_quantity,
	       market_session, holding_period, cost_basis, proceeds
	FROM trades ` + where

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	for _, trade := range trades {
		if err := r.loadTradeChildren(ctx, trade); err != nil {
			return nil, err
		}
	}
	return trades, nil
}

// loadTradeChildren attaches order links and allocations to a trade.
func (r *Repository) loadTradeChildren(ctx context.Context, trade *domain.Trade) error {
	rows, err := r.db.QueryContext(ctx, `SELECT order_id FROM trade_orders WHERE trade_id = ? ORDER BY order_id ASC`, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to query order links for trade %d: %w", trade.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID int64
		if err := rows.Scan(&orderID); err != nil {
			return fmt.Errorf("failed to scan order link for trade %d: %w", trade.ID, err)
		}
		trade.OrderIDs = append(trade.OrderIDs, orderID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order links for trade %d: %w", trade.ID, err)
	}

	allocRows, err := r.db.QueryContext(ctx,
		`SELECT order_id, quantity_allocated, total_order_quantity, price
		 FROM trade_allocations WHERE trade_id = ? ORDER BY order_id ASC`, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to query allocations for trade %d: %w", trade.ID, err)
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var alloc domain.OrderAllocation
		if err := allocRows.Scan(&alloc.OrderID, &alloc.QuantityAllocated, &alloc.TotalOrderQuantity, &alloc.Price); err != nil {
			return fmt.Errorf("failed to scan allocation for trade %d: %w", trade.ID, err)
		}
		trade.Allocations = append(trade.Allocations, alloc)
	}
	if err := allocRows.Err(); err != nil {
		return fmt.Errorf("error iterating allocations for trade %d: %w", trade.ID, err)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder scans a row into a domain.Order struct.
func scanOrder(s scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var executedAt sql.NullTime
	var side string
	err := s.Scan(
		&o.ID, &o.UserID, &o.Symbol, &side, &o.Quantity, &o.Price, &executedAt,
		&o.BrokerOrderID, &o.ImportBatchID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if executedAt.Valid {
		o.ExecutedAt = executedAt.Time
	}
	o.Side = domain.OrderSide(side)
	return o, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var closeTime sql.NullTime
	var side, status, session, holding string
	err := s.Scan(
		&t.ID, &t.UserID, &t.Symbol, &side, &status, &t.OpenTime, &closeTime,
		&t.AvgEntryPrice, &t.AvgExitPrice, &t.OpenQuantity, &t.CloseQuantity, &t.PNL,
		&t.OrdersCount, &t.Executions, &t.Quantity, &t.TimeInTrade, &t.RemainingQuantity,
		&session, &holding, &t.CostBasis, &t.Proceeds)
	if err != nil {
		return nil, err
	}
	if closeTime.Valid {
		t.CloseTime = closeTime.Time
	}
	t.Side = domain.TradeSide(side)
	t.Status = domain.TradeStatus(status)
	t.MarketSession = domain.MarketSession(session)
	t.HoldingPeriod = domain.HoldingPeriod(holding)
	return t, nil
}

func insertAllocations(ctx context.Context, tx *sql.Tx, tradeID int64, allocs []domain.OrderAllocation) error {
	const query = `
	INSERT INTO trade_allocations (trade_id, order_id, quantity_allocated, total_order_quantity, price)
	VALUES (?, ?, ?, ?, ?)`
	for _, a := range allocs {
		if _, err := tx.ExecContext(ctx, query, tradeID, a.OrderID, a.QuantityAllocated, a.TotalOrderQuantity, a.Price); err != nil {
			return fmt.Errorf("failed to insert allocation for trade %d order %d: %w", tradeID, a.OrderID, err)
		}
	}
	return nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if v == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
