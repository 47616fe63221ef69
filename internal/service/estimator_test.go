package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCO2(t *testing.T) {
	tests := []struct {
		name   string
		req    EstimateRequest
		co2    float64
		tokens int64
	}{
		{"zero input still earns one token", EstimateRequest{}, 0, 1},
		{"transport only", EstimateRequest{TransportKm: 100}, 21, 11},
		{"energy only", EstimateRequest{EnergyKwh: 10}, 4, 2},
		{"waste only", EstimateRequest{WasteKg: 5}, 9, 5},
		{"half rounds up", EstimateRequest{EnergyKwh: 2.5}, 1, 1},
		{"combined", EstimateRequest{TransportKm: 10, EnergyKwh: 10, WasteKg: 10}, 24.1, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := EstimateCO2(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.co2, est.CO2Float())
			assert.Equal(t, tt.tokens, est.Tokens)
		})
	}
}

func TestEstimateCO2_RejectsInvalidInput(t *testing.T) {
	for _, req := range []EstimateRequest{
		{TransportKm: -1},
		{EnergyKwh: math.NaN()},
		{WasteKg: math.Inf(1)},
	} {
		_, err := EstimateCO2(req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestEstimateCO2_TokenRangeBoundary(t *testing.T) {
	est, err := EstimateCO2(EstimateRequest{TransportKm: 8e19})
	require.NoError(t, err)
	assert.Equal(t, int64(8400000000000000000), est.Tokens)

	for _, req := range []EstimateRequest{
		{TransportKm: 1e20},
		{WasteKg: math.MaxFloat64},
	} {
		_, err := EstimateCO2(req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}
