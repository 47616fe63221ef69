package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ecoprado/internal/infrastructure/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice = "GALICE0000000000000000000000000000000000000000000000000"
	bob   = "GBOB00000000000000000000000000000000000000000000000000"
)

type payment struct {
	account string
	amount  int64
	memo    string
}

// fakeGateway 可配置的外部账本
type fakeGateway struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	balanceErr error
	payErr     error
	anchorErr  error
	// payGate 不为 nil 时 Pay 阻塞到它被关闭
	payGate chan struct{}

	payments  []payment
	anchors   []string
	contracts []ledger.ContractCall
	nextTx    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{}
}

func (g *fakeGateway) txHash(prefix string) string {
	g.nextTx++
	return fmt.Sprintf("%s-%d", prefix, g.nextTx)
}

func (g *fakeGateway) Configured() bool  { return true }
func (g *fakeGateway) IssuerKey() string { return "GISSUER" }
func (g *fakeGateway) AssetCode() string { return "PRADONSITOS" }

func (g *fakeGateway) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, g.balanceErr
}

func (g *fakeGateway) HasTrustline(ctx context.Context, accountID string) (bool, error) {
	return true, nil
}

func (g *fakeGateway) Pay(ctx context.Context, accountID string, amount int64, memo string) (*ledger.Receipt, error) {
	if g.payGate != nil {
		select {
		case <-g.payGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payErr != nil {
		return nil, g.payErr
	}
	g.payments = append(g.payments, payment{account: accountID, amount: amount, memo: memo})
	return &ledger.Receipt{TxHash: g.txHash("pay")}, nil
}

func (g *fakeGateway) AnchorHash(ctx context.Context, label string, hash []byte) (*ledger.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.anchorErr != nil {
		return nil, g.anchorErr
	}
	g.anchors = append(g.anchors, label)
	return &ledger.Receipt{TxHash: g.txHash("anchor")}, nil
}

func (g *fakeGateway) InvokeContract(ctx context.Context, call ledger.ContractCall) (*ledger.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contracts = append(g.contracts, call)
	return &ledger.Receipt{TxHash: g.txHash("contract")}, nil
}

func (g *fakeGateway) Status(ctx context.Context) ledger.Status {
	return ledger.Status{Configured: true, AssetCode: "PRADONSITOS"}
}

func (g *fakeGateway) paymentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.payments)
}

func (g *fakeGateway) anchorLabels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.anchors...)
}

func unconfiguredGateway() ledger.Gateway {
	return ledger.NewGateway(ledger.Options{AssetCode: "PRADONSITOS"}, nil, nil, nil, zap.NewNop())
}

func newTestServices(t *testing.T, gw ledger.Gateway, settleWait time.Duration) (*Services, *Stores) {
	t.Helper()
	stores := NewMemoryStores()
	services := NewServices(stores, gw, nil, Options{
		SettleWait:    settleWait,
		LedgerTimeout: 2 * time.Second,
		EventTopic:    "ecoprado.settlement",
	}, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = services.Settlement.Wait(ctx)
	})
	return services, stores
}

func mustRegister(t *testing.T, services *Services, publicKey string) {
	t.Helper()
	_, _, err := services.Accounts.Register(context.Background(), &RegisterRequest{PublicKey: publicKey})
	require.NoError(t, err)
}
