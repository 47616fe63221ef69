package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer       = "GISSUERXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
	testDistribution = "GDISTRIBUTIONXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
	testUser         = "GUSERXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
	testAsset        = "PRADONSITOS"
)

type fakeLoader struct {
	accounts map[string]*AccountSnapshot
	errs     map[string]error
	calls    int
}

func (f *fakeLoader) LoadAccount(ctx context.Context, id string) (*AccountSnapshot, error) {
	f.calls++
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, ErrAccountNotFound
}

type fakeSubmitter struct {
	payments []PaymentRequest
	data     []ManageDataRequest
	err      error
}

func (f *fakeSubmitter) SubmitPayment(ctx context.Context, req PaymentRequest) (*Receipt, error) {
	f.payments = append(f.payments, req)
	if f.err != nil {
		return nil, f.err
	}
	return &Receipt{TxHash: "pay-hash"}, nil
}

func (f *fakeSubmitter) SubmitManageData(ctx context.Context, req ManageDataRequest) (*Receipt, error) {
	f.data = append(f.data, req)
	if f.err != nil {
		return nil, f.err
	}
	return &Receipt{TxHash: "anchor-hash"}, nil
}

type fakeContracts struct {
	sim     *Simulation
	simErr  error
	sent    int
	sendErr error
}

func (f *fakeContracts) Simulate(ctx context.Context, call ContractCall) (*Simulation, error) {
	if f.simErr != nil {
		return nil, f.simErr
	}
	return f.sim, nil
}

func (f *fakeContracts) Send(ctx context.Context, call ContractCall, sim *Simulation) (*Receipt, error) {
	f.sent++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &Receipt{TxHash: "contract-hash"}, nil
}

func withAsset(id string, amount string) *AccountSnapshot {
	return &AccountSnapshot{ID: id, Balances: []AssetBalance{
		{AssetType: "native", Balance: decimal.RequireFromString("10")},
		{AssetType: "credit_alphanum12", AssetCode: testAsset, AssetIssuer: testIssuer, Balance: decimal.RequireFromString(amount)},
	}}
}

func nativeOnly(id string) *AccountSnapshot {
	return &AccountSnapshot{ID: id, Balances: []AssetBalance{
		{AssetType: "native", Balance: decimal.RequireFromString("10")},
	}}
}

func testOptions() Options {
	return Options{
		AssetCode:           testAsset,
		IssuerPublicKey:     testIssuer,
		DistributionAccount: testDistribution,
		ContractID:          "CCONTRACT",
	}
}

func settlementCode(t *testing.T, err error) *SettlementError {
	t.Helper()
	var se *SettlementError
	require.True(t, errors.As(err, &se), "expected SettlementError, got %v", err)
	return se
}

func TestPay_NotConfigured(t *testing.T) {
	g := NewGateway(Options{AssetCode: testAsset}, nil, nil, nil, nil)
	assert.False(t, g.Configured())

	_, err := g.Pay(context.Background(), testUser, 10, "recycling")
	assert.Equal(t, CodeNotConfigured, settlementCode(t, err).Code)
}

func TestPay_Preconditions(t *testing.T) {
	cases := []struct {
		name     string
		accounts map[string]*AccountSnapshot
		errs     map[string]error
		want     Code
	}{
		{
			name: "distribution unavailable",
			errs: map[string]error{testDistribution: errors.New("boom")},
			want: CodeDistributionUnavailable,
		},
		{
			name:     "distribution without trustline",
			accounts: map[string]*AccountSnapshot{testDistribution: nativeOnly(testDistribution)},
			want:     CodeDistributionNoTrustline,
		},
		{
			name:     "distribution balance too low",
			accounts: map[string]*AccountSnapshot{testDistribution: withAsset(testDistribution, "5")},
			want:     CodeInsufficientBalance,
		},
		{
			name:     "destination missing",
			accounts: map[string]*AccountSnapshot{testDistribution: withAsset(testDistribution, "1000")},
			want:     CodeAccountNotFound,
		},
		{
			name: "destination without trustline",
			accounts: map[string]*AccountSnapshot{
				testDistribution: withAsset(testDistribution, "1000"),
				testUser:         nativeOnly(testUser),
			},
			want: CodeNoTrustline,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			submitter := &fakeSubmitter{}
			g := NewGateway(testOptions(), &fakeLoader{accounts: tc.accounts, errs: tc.errs}, submitter, nil, nil)

			_, err := g.Pay(context.Background(), testUser, 10, "recycling")
			se := settlementCode(t, err)
			assert.Equal(t, tc.want, se.Code)
			assert.Equal(t, testIssuer, se.Meta.IssuerKey)
			assert.Empty(t, submitter.payments, "payment must not be submitted")
		})
	}
}

func TestPay_InsufficientBalanceMeta(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{testDistribution: withAsset(testDistribution, "5")}}
	g := NewGateway(testOptions(), loader, &fakeSubmitter{}, nil, nil)

	_, err := g.Pay(context.Background(), testUser, 10, "")
	se := settlementCode(t, err)
	require.NotNil(t, se.Meta.CurrentBalance)
	require.NotNil(t, se.Meta.Required)
	assert.True(t, se.Meta.CurrentBalance.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, int64(10), *se.Meta.Required)
}

func TestPay_NoTrustlineMeta(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{
		testDistribution: withAsset(testDistribution, "1000"),
		testUser:         nativeOnly(testUser),
	}}
	g := NewGateway(testOptions(), loader, &fakeSubmitter{}, nil, nil)

	_, err := g.Pay(context.Background(), testUser, 10, "")
	se := settlementCode(t, err)
	assert.True(t, se.Meta.NeedsTrustline)
	assert.Equal(t, testIssuer, se.Meta.IssuerKey)
}

func TestPay_Success(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{
		testDistribution: withAsset(testDistribution, "1000"),
		testUser:         withAsset(testUser, "0"),
	}}
	submitter := &fakeSubmitter{}
	g := NewGateway(testOptions(), loader, submitter, nil, nil)

	receipt, err := g.Pay(context.Background(), testUser, 15, "green_transport_reward_long_memo")
	require.NoError(t, err)
	assert.Equal(t, "pay-hash", receipt.TxHash)

	require.Len(t, submitter.payments, 1)
	p := submitter.payments[0]
	assert.Equal(t, testDistribution, p.Source)
	assert.Equal(t, testUser, p.Destination)
	assert.Equal(t, "15", p.Amount)
	assert.LessOrEqual(t, len(p.Memo), 28)
}

func TestPay_DestinationLookupErrorStillSubmits(t *testing.T) {
	loader := &fakeLoader{
		accounts: map[string]*AccountSnapshot{testDistribution: withAsset(testDistribution, "1000")},
		errs:     map[string]error{testUser: errors.New("horizon 返回 503")},
	}
	submitter := &fakeSubmitter{}
	g := NewGateway(testOptions(), loader, submitter, nil, nil)

	_, err := g.Pay(context.Background(), testUser, 10, "")
	require.NoError(t, err)
	assert.Len(t, submitter.payments, 1)
}

func TestPay_RejectionClassified(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{
		testDistribution: withAsset(testDistribution, "1000"),
		testUser:         withAsset(testUser, "0"),
	}}
	submitter := &fakeSubmitter{err: &RejectionError{Transaction: "tx_failed", Operations: []string{"op_line_full"}}}
	g := NewGateway(testOptions(), loader, submitter, nil, nil)

	_, err := g.Pay(context.Background(), testUser, 10, "")
	se := settlementCode(t, err)
	assert.Equal(t, CodeLineFull, se.Code)
	assert.Equal(t, "op_line_full", se.RawCode)
}

func TestAnchorHash(t *testing.T) {
	submitter := &fakeSubmitter{}
	g := NewGateway(testOptions(), &fakeLoader{}, submitter, nil, nil)

	hash := []byte{0xde, 0xad, 0xbe, 0xef}
	receipt, err := g.AnchorHash(context.Background(), "ECO-ORDER-1", hash)
	require.NoError(t, err)
	assert.Equal(t, "anchor-hash", receipt.TxHash)
	require.Len(t, submitter.data, 1)
	assert.Equal(t, "ECO-ORDER-1", submitter.data[0].Name)
	assert.Equal(t, hash, submitter.data[0].Value)

	long := "ECO-ACT-" + string(make([]byte, 100))
	_, err = g.AnchorHash(context.Background(), long, hash)
	require.NoError(t, err)
	assert.Len(t, submitter.data[1].Name, 64)

	_, err = g.AnchorHash(context.Background(), "", hash)
	require.NoError(t, err)
	assert.Equal(t, "ECO-ACT", submitter.data[2].Name)
}

func TestInvokeContract_SimulationFailureAbortsSend(t *testing.T) {
	contracts := &fakeContracts{sim: &Simulation{Error: "HostError: contract trapped"}}
	g := NewGateway(testOptions(), &fakeLoader{}, &fakeSubmitter{}, contracts, nil)

	_, err := g.InvokeContract(context.Background(), ContractCall{Function: "report_action"})
	require.Error(t, err)
	assert.Equal(t, 0, contracts.sent)
}

func TestInvokeContract_Success(t *testing.T) {
	contracts := &fakeContracts{sim: &Simulation{TransactionData: "AAAA"}}
	g := NewGateway(testOptions(), &fakeLoader{}, &fakeSubmitter{}, contracts, nil)

	receipt, err := g.InvokeContract(context.Background(), ContractCall{Function: "report_action"})
	require.NoError(t, err)
	assert.Equal(t, "contract-hash", receipt.TxHash)
	assert.Equal(t, 1, contracts.sent)
}

func TestInvokeContract_NotConfigured(t *testing.T) {
	g := NewGateway(testOptions(), &fakeLoader{}, &fakeSubmitter{}, nil, nil)

	_, err := g.InvokeContract(context.Background(), ContractCall{Function: "report_action"})
	assert.Equal(t, CodeNotConfigured, settlementCode(t, err).Code)
}

func TestGetBalance(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{
		testUser:   withAsset(testUser, "42.5000000"),
		"GNOTRUST": nativeOnly("GNOTRUST"),
	}}
	g := NewGateway(testOptions(), loader, &fakeSubmitter{}, nil, nil)

	balance, err := g.GetBalance(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("42.5")))

	balance, err = g.GetBalance(context.Background(), "GNOTRUST")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	_, err = g.GetBalance(context.Background(), "GMISSING")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	ok, err := g.HasTrustline(context.Background(), "GNOTRUST")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatus(t *testing.T) {
	loader := &fakeLoader{accounts: map[string]*AccountSnapshot{testDistribution: withAsset(testDistribution, "500")}}
	g := NewGateway(testOptions(), loader, &fakeSubmitter{}, &fakeContracts{}, nil)

	status := g.Status(context.Background())
	assert.True(t, status.Configured)
	assert.True(t, status.ContractConfigured)
	assert.Equal(t, AssetStatusOK, status.AssetStatus)
	require.NotNil(t, status.DistributionBalance)
	assert.Equal(t, "GISSUERXXX...", status.IssuerKey)

	unconfigured := NewGateway(Options{AssetCode: testAsset}, nil, nil, nil, nil).Status(context.Background())
	assert.False(t, unconfigured.Configured)
	assert.Equal(t, AssetStatusUnknown, unconfigured.AssetStatus)
	assert.Nil(t, unconfigured.ContractID)
}
