package service

import (
	"context"
	"testing"
	"time"

	"ecoprado/internal/model"
	"ecoprado/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_AppliesDefaults(t *testing.T) {
	services, _ := newTestServices(t, unconfiguredGateway(), time.Second)
	services.Accounts.now = func() time.Time { return time.UnixMilli(1700000000123) }

	account, created, err := services.Accounts.Register(context.Background(), &RegisterRequest{PublicKey: "  " + alice + " "})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, alice, account.PublicKey)
	assert.Equal(t, "Usuario Demo", account.Name)
	assert.Equal(t, model.DefaultRole, account.Role)
	assert.Equal(t, "user1700000000123@ecoprado.com", account.Email)
}

func TestRegister_TwiceKeepsIdAndBalance(t *testing.T) {
	ctx := context.Background()
	services, stores := newTestServices(t, unconfiguredGateway(), time.Second)

	first, created, err := services.Accounts.Register(ctx, &RegisterRequest{PublicKey: alice, Name: "Ana", Role: "productor"})
	require.NoError(t, err)
	require.True(t, created)

	_, err = services.Settlement.ReportAction(ctx, &ReportRequest{PublicKey: alice, ActionType: "recycling"})
	require.NoError(t, err)

	second, created, err := services.Accounts.Register(ctx, &RegisterRequest{PublicKey: alice, Name: "Otra"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana", second.Name)
	assert.Equal(t, "productor", second.Role)

	balance, _ := stores.Balances.Get(ctx, alice)
	assert.Equal(t, int64(10), balance)
}

func TestRegister_EmptyKey(t *testing.T) {
	services, _ := newTestServices(t, unconfiguredGateway(), time.Second)

	_, _, err := services.Accounts.Register(context.Background(), &RegisterRequest{PublicKey: "   "})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestProfile_MergesBalanceAndActions(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t, unconfiguredGateway(), time.Second)
	mustRegister(t, services, alice)

	_, err := services.Settlement.ReportAction(ctx, &ReportRequest{PublicKey: alice, ActionType: "recycling"})
	require.NoError(t, err)
	_, err = services.Settlement.SubmitCalculation(ctx, &CalculatorSubmitRequest{PublicKey: alice, EstimateRequest: EstimateRequest{WasteKg: 1}})
	require.NoError(t, err)

	profile, err := services.Accounts.Profile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, profile.PublicKey)
	assert.Equal(t, int64(11), profile.Balance)
	assert.Equal(t, 2, profile.TotalActions)
	assert.Equal(t, 4.3, profile.CO2Saved)
}

func TestProfile_ReconcilesOnlyPositiveObservations(t *testing.T) {
	tests := []struct {
		name     string
		observed string
		want     int64
	}{
		{"positive overwrites local", "42.9", 42},
		{"zero keeps local", "0", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw := newFakeGateway()
			gw.payErr = context.DeadlineExceeded
			services, stores := newTestServices(t, gw, 2*time.Second)
			mustRegister(t, services, alice)

			_, err := services.Settlement.ReportAction(ctx, &ReportRequest{PublicKey: alice, ActionType: "environmental_education"})
			require.NoError(t, err)

			gw.mu.Lock()
			gw.balance = decimal.RequireFromString(tt.observed)
			gw.mu.Unlock()

			profile, err := services.Accounts.Profile(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, tt.want, profile.Balance)

			balance, _ := stores.Balances.Get(ctx, alice)
			assert.Equal(t, tt.want, balance)
		})
	}
}

func TestProfile_UnknownAccount(t *testing.T) {
	services, _ := newTestServices(t, unconfiguredGateway(), time.Second)

	_, err := services.Accounts.Profile(context.Background(), bob)
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}
