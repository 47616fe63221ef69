package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecoprado/internal/infrastructure/ledger"
	"ecoprado/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 商品 6 价格 20，商品 5 价格 30
const cheapItem = int64(6)

func fund(t *testing.T, services *Services, publicKey string, amount int64) {
	t.Helper()
	_, err := services.Settlement.Airdrop(context.Background(), &AirdropRequest{PublicKey: publicKey, Amount: amount})
	require.NoError(t, err)
}

func TestPurchase_ExactBalanceSucceeds(t *testing.T) {
	ctx := context.Background()
	services, stores := newTestServices(t, unconfiguredGateway(), time.Second)
	mustRegister(t, services, alice)
	fund(t, services, alice, 20)

	result, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Balance)
	require.NotNil(t, result.Order)
	assert.Equal(t, "Descuento Transporte Público", result.Order.ItemName)
	assert.Equal(t, SettledLocal, result.Settlement.Status)
	assert.Equal(t, ledger.CodeNotConfigured, result.Settlement.Code)

	orders, err := stores.Orders.ListByAccount(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPurchase_OneShortIsRejectedWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	services, stores := newTestServices(t, unconfiguredGateway(), time.Second)
	mustRegister(t, services, alice)
	fund(t, services, alice, 19)

	_, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrInsufficientFunds))

	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(19), insufficient.Balance)
	assert.Equal(t, int64(20), insufficient.Price)

	balance, _ := stores.Balances.Get(ctx, alice)
	assert.Equal(t, int64(19), balance)
	orders, _ := stores.Orders.ListByAccount(ctx, alice)
	assert.Empty(t, orders)
}

func TestPurchase_UnknownItemAndAccount(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t, unconfiguredGateway(), time.Second)

	_, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)

	mustRegister(t, services, alice)
	_, err = services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: 404})
	assert.ErrorIs(t, err, repository.ErrItemNotFound)

	_, err = services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPurchase_ConcurrentOnlyOneWinsLastTokens(t *testing.T) {
	ctx := context.Background()
	services, stores := newTestServices(t, unconfiguredGateway(), 0)
	mustRegister(t, services, alice)
	fund(t, services, alice, 20)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if errors.Is(err, repository.ErrInsufficientFunds) {
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, rejected)

	balance, _ := stores.Balances.Get(ctx, alice)
	assert.Equal(t, int64(0), balance)
	orders, _ := stores.Orders.ListByAccount(ctx, alice)
	assert.Len(t, orders, 1)
}

func TestPurchase_AnchorsOrderHash(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	services, _ := newTestServices(t, gw, 2*time.Second)
	mustRegister(t, services, alice)
	fund(t, services, alice, 50)

	result, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
	require.NoError(t, err)

	assert.Equal(t, SettledExternal, result.Settlement.Status)
	require.NotNil(t, result.Order.AnchorTxHash)
	assert.Equal(t, *result.Settlement.TxHash, *result.Order.AnchorTxHash)
	assert.Equal(t, int64(30), result.Balance)
	assert.Equal(t, []string{"ECO-ORDER-1"}, gw.anchorLabels())
}

func TestPurchase_AnchorFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.anchorErr = context.DeadlineExceeded
	services, stores := newTestServices(t, gw, 2*time.Second)
	mustRegister(t, services, alice)
	fund(t, services, alice, 50)

	result, err := services.Settlement.Purchase(ctx, &PurchaseRequest{PublicKey: alice, ItemID: cheapItem})
	require.NoError(t, err)
	assert.Equal(t, SettledLocal, result.Settlement.Status)
	assert.Equal(t, ledger.CodeLedgerUnavailable, result.Settlement.Code)

	balance, _ := stores.Balances.Get(ctx, alice)
	assert.Equal(t, int64(30), balance)
}
