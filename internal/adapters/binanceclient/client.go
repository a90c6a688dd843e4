package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.BrokerClient interface using the go-binance
// library. It is read-only: the journal pulls historical fills, it never
// places orders.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	userID     int64
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	UserID     int64 // journal user the fetched orders belong to
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("API key and secret are required to read order history: %w", ports.ErrConfigurationError)
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		userID:     cfg.UserID,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrBrokerUnavailable
		}
		c.logger.Error(ctx, mappedErr, "Binance API error", fields)
		return fmt.Errorf("%s: %w (code %d: %s)", operation, mappedErr, apiErr.Code, apiErr.Message)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, ports.ErrContextCanceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, ports.ErrTimeout)
	}

	c.logger.Error(ctx, err, "Unhandled broker error", fields)
	return fmt.Errorf("%s: %w: %v", operation, ports.ErrConnectionFailed, err)
}

// Ping verifies connectivity to the broker API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// FetchFilledOrders returns the account's filled orders for a symbol
// executed at or after the given time, mapped to domain orders. Orders
// that were cancelled or never filled are dropped.
func (c *Client) FetchFilledOrders(ctx context.Context, symbol string, since time.Time) ([]*domain.Order, error) {
	op := "FetchFilledOrders"
	svc := c.spotClient.NewListOrdersService().Symbol(symbol)
	if !since.IsZero() {
		svc = svc.StartTime(since.UnixMilli())
	}
	raw, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	orders := make([]*domain.Order, 0, len(raw))
	skipped := 0
	for _, o := range raw {
		mapped, ok := c.mapOrder(ctx, o)
		if !ok {
			skipped++
			continue
		}
		orders = append(orders, mapped)
	}
	c.logger.Info(ctx, op+": fetched order history", map[string]interface{}{
		"symbol": symbol, "received": len(raw), "filled": len(orders), "skipped": skipped,
	})
	return orders, nil
}

// mapOrder converts a Binance order into a domain order. Returns false
// for orders that contributed no fill.
func (c *Client) mapOrder(ctx context.Context, o *binance.Order) (*domain.Order, bool) {
	if o.Status != binance.OrderStatusTypeFilled && o.Status != binance.OrderStatusTypePartiallyFilled {
		return nil, false
	}

	executedQty, err := strconv.ParseFloat(o.ExecutedQuantity, 64)
	if err != nil || executedQty <= 0 {
		return nil, false
	}
	qty := int64(math.Round(executedQty))
	if qty <= 0 {
		return nil, false
	}

	// Prefer the realized average price over the limit price.
	price := avgFillPrice(o.CummulativeQuoteQuantity, executedQty)
	if price == 0 {
		price, err = strconv.ParseFloat(o.Price, 64)
		if err != nil {
			price = 0
		}
	}

	side := domain.Buy
	if o.Side == binance.SideTypeSell {
		side = domain.Sell
	}

	var executedAt time.Time
	if o.Time > 0 {
		executedAt = time.UnixMilli(o.Time).UTC()
	}
	if executedAt.IsZero() || price == 0 {
		// Stored anyway; the matcher skips orders missing these fields.
		c.logger.Warn(ctx, "Broker order missing fill data", map[string]interface{}{
			"brokerOrderID": o.OrderID, "symbol": o.Symbol, "price": price,
		})
	}

	return &domain.Order{
		UserID:        c.userID,
		Symbol:        o.Symbol,
		Side:          side,
		Quantity:      qty,
		Price:         price,
		ExecutedAt:    executedAt,
		BrokerOrderID: strconv.FormatInt(o.OrderID, 10),
	}, true
}

// avgFillPrice derives the average fill price from the cumulative quote
// quantity when the API reports it.
func avgFillPrice(cumQuote string, executedQty float64) float64 {
	if executedQty <= 0 {
		return 0
	}
	quote, err := strconv.ParseFloat(cumQuote, 64)
	if err != nil || quote <= 0 {
		return 0
	}
	return quote / executedQty
}
