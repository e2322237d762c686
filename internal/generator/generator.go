package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tanvi/payboard/internal/domain"
)

// Config controls synthetic transaction generation.
type Config struct {
	// StartID seeds the sequential TXN identifier space.
	StartID int
	// RandomIDs draws identifiers at random from the TXN number space
	// instead of sequentially, so repeated seeding runs do not collide.
	RandomIDs bool
	// Window is how far into the past timestamps are scattered.
	Window time.Duration
	// Seed makes generation deterministic when non-zero.
	Seed int64
}

// DefaultConfig returns the generation defaults used by the seed tooling.
func DefaultConfig() Config {
	return Config{
		StartID: 100000,
		Window:  24 * time.Hour,
	}
}

var (
	payerPool = []string{"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank"}
	payeePool = []string{"MerchantA", "MerchantB", "StoreX", "VendorY", "VendorZ"}
)

// Generator produces synthetic transactions shaped like real back-office
// traffic: sequential TXN identifiers, amounts between 10 and 200000 with
// two decimal places, and statuses weighted toward Success.
type Generator struct {
	cfg   Config
	rand  *rand.Rand
	nowFn func() time.Time
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.StartID <= 0 {
		cfg.StartID = DefaultConfig().StartID
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:   cfg,
		rand:  rand.New(rand.NewSource(cfg.Seed)),
		nowFn: time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (g *Generator) WithClock(nowFn func() time.Time) *Generator {
	if nowFn != nil {
		g.nowFn = nowFn
	}
	return g
}

// Generate synthesises count transactions. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context, count int) ([]domain.Transaction, error) {
	now := g.nowFn().UTC()
	windowMinutes := int(g.cfg.Window / time.Minute)
	if windowMinutes <= 0 {
		windowMinutes = 1
	}

	txns := make([]domain.Transaction, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Whole units plus paise keeps amounts at exactly two decimal places.
		units := decimal.NewFromInt(10 + g.rand.Int63n(199990))
		paise := decimal.New(int64(g.rand.Intn(100)), -2)

		txnID := fmt.Sprintf("TXN%d", g.cfg.StartID+i)
		if g.cfg.RandomIDs {
			txnID = fmt.Sprintf("TXN%d", 100000+g.rand.Intn(900000))
		}

		txns[i] = domain.Transaction{
			TxnID:     txnID,
			Payer:     payerPool[g.rand.Intn(len(payerPool))],
			Payee:     payeePool[g.rand.Intn(len(payeePool))],
			Amount:    units.Add(paise),
			Channel:   g.randomChannel(),
			Status:    g.randomStatus(),
			Timestamp: now.Add(-time.Duration(g.rand.Intn(windowMinutes)) * time.Minute),
			Remarks:   "",
		}
	}
	return txns, nil
}

func (g *Generator) randomChannel() domain.Channel {
	channels := domain.Channels()
	return channels[g.rand.Intn(len(channels))]
}

// randomStatus draws Pending/Success/Failed with weights 0.2/0.6/0.2.
func (g *Generator) randomStatus() domain.Status {
	switch r := g.rand.Float64(); {
	case r < 0.2:
		return domain.StatusPending
	case r < 0.8:
		return domain.StatusSuccess
	default:
		return domain.StatusFailed
	}
}
