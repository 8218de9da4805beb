// Package pricing supplies current market prices used to mark open lots
// and positions. Marks are annotations only: an unavailable price degrades
// mark-to-market fields, it never blocks a sync.
package pricing

import (
	"context"
	"errors"
	"fmt"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"
)

// ErrUnavailable indicates no current price could be obtained for a symbol.
var ErrUnavailable = errors.New("price unavailable")

// Source looks up the current market price for a symbol.
type Source interface {
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PolygonSource retrieves last-trade prices from the Polygon REST API.
type PolygonSource struct {
	client *polygon.Client
}

// NewPolygonSource creates a Polygon-backed price source.
func NewPolygonSource(apiKey string) *PolygonSource {
	return &PolygonSource{client: polygon.New(apiKey)}
}

// GetCurrentPrice implements Source.
func (s *PolygonSource) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := s.client.GetLastTrade(ctx, &polygonmodels.GetLastTradeParams{Ticker: symbol})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	price := decimal.NewFromFloat(resp.Results.Price)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s returned no trade price", ErrUnavailable, symbol)
	}
	return price, nil
}
