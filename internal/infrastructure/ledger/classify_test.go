package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRejection_Table(t *testing.T) {
	cases := []struct {
		name    string
		tx      string
		ops     []string
		want    Code
		wantRaw string
	}{
		{"no trust", "tx_failed", []string{"op_no_trust"}, CodeNoTrustline, "op_no_trust"},
		{"line full", "tx_failed", []string{"op_line_full"}, CodeLineFull, "op_line_full"},
		{"underfunded", "tx_failed", []string{"op_underfunded"}, CodeUnderfunded, "op_underfunded"},
		{"no destination", "tx_failed", []string{"op_no_destination"}, CodeNoDestination, "op_no_destination"},
		{"low reserve", "tx_failed", []string{"op_low_reserve"}, CodeLowReserve, "op_low_reserve"},
		{"already exists", "tx_failed", []string{"op_already_exists"}, CodeAlreadyExists, "op_already_exists"},
		{"upper case variant", "tx_failed", []string{"NO_TRUST"}, CodeNoTrustline, "NO_TRUST"},
		{"bad auth", "tx_bad_auth", nil, CodeBadAuth, "tx_bad_auth"},
		{"insufficient fee", "tx_insufficient_fee", nil, CodeInsufficientFee, "tx_insufficient_fee"},
		{"transaction code wins", "tx_bad_auth", []string{"op_no_trust"}, CodeBadAuth, "tx_bad_auth"},
		{"skips successful ops", "tx_failed", []string{"op_success", "op_line_full"}, CodeLineFull, "op_line_full"},
		{"unknown op keeps raw code", "tx_failed", []string{"op_src_not_authorized"}, CodeLedgerRejected, "op_src_not_authorized"},
		{"unknown tx keeps raw code", "tx_too_late", nil, CodeLedgerRejected, "tx_too_late"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := ClassifyRejection(&RejectionError{Transaction: tc.tx, Operations: tc.ops})
			assert.Equal(t, tc.want, se.Code)
			assert.Equal(t, tc.wantRaw, se.RawCode)
			assert.NotEmpty(t, se.Message)
		})
	}
}

func TestClassify(t *testing.T) {
	se := Classify(fmt.Errorf("wrapped: %w", &RejectionError{Transaction: "tx_failed", Operations: []string{"op_no_trust"}}))
	assert.Equal(t, CodeNoTrustline, se.Code)

	se = Classify(ErrAccountNotFound)
	assert.Equal(t, CodeAccountNotFound, se.Code)

	se = Classify(context.DeadlineExceeded)
	assert.Equal(t, CodeLedgerUnavailable, se.Code)
	assert.Equal(t, "timeout", se.RawCode)

	se = Classify(errors.New("connection refused"))
	assert.Equal(t, CodeLedgerUnavailable, se.Code)

	original := &SettlementError{Code: CodeNoTrustline, Message: "x"}
	assert.Same(t, original, Classify(original))

	assert.Nil(t, Classify(nil))
}

func TestEveryCodeHasHint(t *testing.T) {
	for _, code := range AllCodes() {
		_, ok := hints[code]
		require.True(t, ok, "missing hint for %s", code)
	}
	for _, code := range operationCodes {
		assert.Contains(t, AllCodes(), code)
	}
	for _, code := range transactionCodes {
		assert.Contains(t, AllCodes(), code)
	}
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "recycling", truncateBytes("recycling", 28))
	assert.Len(t, truncateBytes("environmental_education_reward_x", 28), 28)
	// "ó" 占两个字节，截断不能落在字符中间
	assert.Equal(t, "ab", truncateBytes("abó", 3))
}
