package market

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/agora/pkg/sim"
)

// Order rejection reasons. All wrap sim.ErrIllegitimateOrder so callers can
// classify with errors.Is; rejections leave the book untouched.
var (
	ErrUnknownGood      = errors.New("unknown good")
	ErrInvalidPrice     = fmt.Errorf("%w: price must be positive", sim.ErrIllegitimateOrder)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be non-zero", sim.ErrIllegitimateOrder)
	ErrInsufficientFund = fmt.Errorf("%w: insufficient capital", sim.ErrIllegitimateOrder)
	ErrInsufficientGood = fmt.Errorf("%w: insufficient goods", sim.ErrIllegitimateOrder)
)

// Order is an intent to trade a quantity of a good at a limit price. The
// quantity sign encodes the side: positive buys, negative sells. Seq is
// assigned from the run context on acceptance and also serves as the FIFO
// tie-break among equal prices.
type Order struct {
	Seq      int64       `json:"seq"`
	Good     string      `json:"good"`
	Price    int64       `json:"price"`
	Quantity int64       `json:"quantity"`
	Agent    sim.AgentID `json:"agent"`
}

func (o *Order) IsBuy() bool { return o.Quantity > 0 }

// Remaining is the unfilled magnitude.
func (o *Order) Remaining() int64 {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

// Action kinds owned by the marketplace artifact.
const (
	KindBuy   sim.ActionKind = "buy"
	KindSell  sim.ActionKind = "sell"
	KindQuery sim.ActionKind = "market_query"
)

// BuyOrder is the external descriptor for a bid.
type BuyOrder struct {
	Good     string `json:"good"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

func (BuyOrder) ActionKind() sim.ActionKind { return KindBuy }

// SellOrder is the external descriptor for an offer.
type SellOrder struct {
	Good     string `json:"good"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

func (SellOrder) ActionKind() sim.ActionKind { return KindSell }

// MarketQuery asks for the current state of one good's book. Read-only.
type MarketQuery struct {
	Good string `json:"good"`
}

func (MarketQuery) ActionKind() sim.ActionKind { return KindQuery }

func decodeOrderParams(params map[string]any) (good string, price, qty int64, err error) {
	if good, err = sim.StringParam(params, "good"); err != nil {
		return
	}
	if price, err = sim.IntParam(params, "price"); err != nil {
		return
	}
	qty, err = sim.IntParam(params, "quantity")
	return
}

func decodeBuy(params map[string]any) (sim.Action, error) {
	good, price, qty, err := decodeOrderParams(params)
	if err != nil {
		return nil, err
	}
	return BuyOrder{Good: good, Price: price, Quantity: qty}, nil
}

func decodeSell(params map[string]any) (sim.Action, error) {
	good, price, qty, err := decodeOrderParams(params)
	if err != nil {
		return nil, err
	}
	return SellOrder{Good: good, Price: price, Quantity: qty}, nil
}

func decodeQuery(params map[string]any) (sim.Action, error) {
	good, err := sim.StringParam(params, "good")
	if err != nil {
		return nil, err
	}
	return MarketQuery{Good: good}, nil
}
