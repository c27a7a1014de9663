package domain

import "context"

// ProductType is the venue product under which orders are booked.
type ProductType string

const (
	ProductIntraday ProductType = "MIS"
	ProductDelivery ProductType = "NRML"
)

// OrderType is the venue order pricing mode.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Quote is the venue's last-traded state for one symbol.
type Quote struct {
	Symbol    string
	Exchange  string
	LastPrice float64
}

// OrderRequest is a single order to be submitted to the venue.
type OrderRequest struct {
	StrategyTag string
	Symbol      string
	Exchange    string
	Side        Side
	Product     ProductType
	OrderType   OrderType
	Quantity    int
}

// OrderResult is the venue acknowledgement for a submitted order. An
// acknowledgement confirms acceptance, not a fill.
type OrderResult struct {
	OrderID string
	Status  string
}

// BrokerPosition is one row of the venue's aggregate position book.
type BrokerPosition struct {
	Symbol       string
	Exchange     string
	NetQuantity  int
	AveragePrice float64
	LastPrice    float64
	RealizedPnL  float64
}

// Broker is the venue collaborator contract the engine is built against.
// Implementations own transport and authentication; the engine only assumes
// the calls may fail, rate-limit, or time out at any point.
type Broker interface {
	GetQuote(ctx context.Context, symbol, exchange string) (Quote, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetPositions(ctx context.Context) ([]BrokerPosition, error)
}
