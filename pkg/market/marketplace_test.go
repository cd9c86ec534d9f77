package market

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/uhyunpark/agora/pkg/sim"
)

func TestCompileInfersGoodsFromInventories(t *testing.T) {
	_, mkt := setupMarket(t,
		agentSpec{"alice", map[string]int64{"capital": 100, "widget": 2}},
		agentSpec{"bob", map[string]int64{"gadget": 5}},
	)

	goods := mkt.Goods()
	if len(goods) != 2 || goods[0] != "gadget" || goods[1] != "widget" {
		t.Fatalf("goods = %v, want [gadget widget]", goods)
	}
	if _, ok := mkt.Lookup("capital"); ok {
		t.Fatal("capital must not get a market")
	}
}

func TestProcessActionRoutesToBook(t *testing.T) {
	ctx, mkt := setupMarket(t,
		agentSpec{"buyer", map[string]int64{"capital": 1000}},
		agentSpec{"seller", map[string]int64{"widget": 10}},
	)
	buyer := ctx.AgentByName("buyer")
	seller := ctx.AgentByName("seller")

	if _, err := mkt.ProcessAction(ctx, seller, SellOrder{Good: "widget", Price: 10, Quantity: 3}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := mkt.ProcessAction(ctx, buyer, BuyOrder{Good: "widget", Price: 10, Quantity: 3}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	trades := mkt.Book("widget").Trades()
	if len(trades) != 1 || trades[0].Price != 10 || trades[0].Quantity != 3 {
		t.Fatalf("trades = %+v, want 3 at 10", trades)
	}
}

func TestProcessActionRejectsUnknownGood(t *testing.T) {
	ctx, mkt := setupMarket(t,
		agentSpec{"alice", map[string]int64{"capital": 100, "widget": 1}},
	)
	alice := ctx.AgentByName("alice")

	_, err := mkt.ProcessAction(ctx, alice, BuyOrder{Good: "unobtainium", Price: 10, Quantity: 1})
	if !errors.Is(err, ErrUnknownGood) {
		t.Fatalf("err = %v, want ErrUnknownGood", err)
	}
}

func TestProcessActionRejectsNegativeQuantity(t *testing.T) {
	ctx, mkt := setupMarket(t,
		agentSpec{"alice", map[string]int64{"capital": 100, "widget": 5}},
	)
	alice := ctx.AgentByName("alice")

	_, err := mkt.ProcessAction(ctx, alice, SellOrder{Good: "widget", Price: 10, Quantity: -2})
	if !errors.Is(err, sim.ErrIllegitimateOrder) {
		t.Fatalf("err = %v, want ErrIllegitimateOrder", err)
	}
}

func TestQueryRendersBookWithoutMutating(t *testing.T) {
	ctx, mkt := setupMarket(t,
		agentSpec{"buyer", map[string]int64{"capital": 1000}},
		agentSpec{"seller", map[string]int64{"widget": 10}},
	)
	buyer := ctx.AgentByName("buyer")
	seller := ctx.AgentByName("seller")
	book := mkt.Book("widget")

	if _, err := sell(ctx, t, book, seller, 60, 2); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := buy(ctx, t, book, buyer, 50, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}

	out, err := mkt.ProcessQuery(ctx, buyer, MarketQuery{Good: "widget"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "widget") || !strings.Contains(out, "60") || !strings.Contains(out, "50") {
		t.Fatalf("render missing book contents:\n%s", out)
	}

	if len(book.BidLevels()) != 1 || len(book.AskLevels()) != 1 {
		t.Fatal("query mutated the book")
	}

	if _, err := mkt.ProcessQuery(ctx, buyer, MarketQuery{Good: "unobtainium"}); !errors.Is(err, ErrUnknownGood) {
		t.Fatalf("err = %v, want ErrUnknownGood", err)
	}
}

func TestQuotesPublishTopOfBook(t *testing.T) {
	ctx, mkt := setupMarket(t,
		agentSpec{"buyer", map[string]int64{"capital": 1000}},
		agentSpec{"seller", map[string]int64{"widget": 10}},
	)
	buyer := ctx.AgentByName("buyer")
	seller := ctx.AgentByName("seller")
	book := mkt.Book("widget")

	quotes := mkt.Quotes()
	q := quotes["widget"]
	if q.HasBid || q.HasAsk {
		t.Fatalf("empty book published quotes: %+v", q)
	}

	if _, err := buy(ctx, t, book, buyer, 50, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := sell(ctx, t, book, seller, 60, 1); err != nil {
		t.Fatalf("sell: %v", err)
	}

	q = mkt.Quotes()["widget"]
	if !q.HasBid || q.BestBid != 50 {
		t.Fatalf("quote bid = %+v, want 50", q)
	}
	if !q.HasAsk || q.BestAsk != 60 {
		t.Fatalf("quote ask = %+v, want 60", q)
	}
}

// TestTradingThroughEnvironment drives the full loop: scripted policies emit
// descriptors, the kernel decodes and routes them, and the books match.
func TestTradingThroughEnvironment(t *testing.T) {
	sellerPolicy := sim.PolicyFunc(func(context.Context, sim.Observation) (sim.Descriptor, error) {
		return sim.Descriptor{Name: "sell", Params: map[string]any{
			"good": "widget", "price": int64(10), "quantity": int64(2),
		}}, nil
	})
	buyerPolicy := sim.PolicyFunc(func(context.Context, sim.Observation) (sim.Descriptor, error) {
		return sim.Descriptor{Name: "buy", Params: map[string]any{
			"good": "widget", "price": int64(10), "quantity": int64(2),
		}}, nil
	})

	mkt := New()
	env := sim.NewEnvironment(sim.Options{MaxSteps: 1, MaxEpisodes: 1})
	seller := sim.NewAgent("seller", map[string]int64{"widget": 5}, sellerPolicy)
	buyer := sim.NewAgent("buyer", map[string]int64{"capital": 100}, buyerPolicy)
	if err := env.Add([]*sim.Agent{seller, buyer}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := env.Add(sim.Artifact(mkt)); err != nil {
		t.Fatalf("add marketplace: %v", err)
	}
	if err := env.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := env.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	trades := mkt.Book("widget").Trades()
	if len(trades) != 1 || trades[0].Price != 10 || trades[0].Quantity != 2 {
		t.Fatalf("trades = %+v, want 2 at 10", trades)
	}
	if got := buyer.Inventory.Quantity("widget"); got != 2 {
		t.Fatalf("buyer widgets = %d, want 2", got)
	}
	if got := seller.Inventory.Quantity(sim.Capital); got != 20 {
		t.Fatalf("seller capital = %d, want 20", got)
	}
	for _, rec := range env.ActionLog(0) {
		if rec.Outcome != "ok" {
			t.Fatalf("record = %+v, want ok", rec)
		}
	}
}
