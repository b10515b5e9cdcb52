package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Format(t *testing.T) {
	err := NewValidationError("risk", "can_place_order", "quantity must be non-zero")
	assert.Equal(t, "[VALIDATION:risk] can_place_order: quantity must be non-zero", err.Error())
	assert.Nil(t, err.Unwrap())

	wrapped := NewInvalidPriceError("risk", "update_position", "price -1")
	assert.Equal(t, "[VALIDATION:risk] update_position: price -1: invalid price", wrapped.Error())
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *EngineError
		sentinel error
		category ErrorCategory
	}{
		{"sample", NewInvalidSampleError("volatility", "update", "NaN"), ErrInvalidSample, ErrorCategoryValidation},
		{"price", NewInvalidPriceError("risk", "add_position", "zero"), ErrInvalidPrice, ErrorCategoryValidation},
		{"symbol", NewUnknownSymbolError("risk", "reset_drawdown", "XRPUSDT"), ErrUnknownSymbol, ErrorCategoryState},
		{"config", NewConfigurationError("config", "validate", "min_samples"), ErrInvalidConfig, ErrorCategoryConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, stderrors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.category, tt.err.Category)

			outer := fmt.Errorf("engine: %w", tt.err)
			assert.True(t, stderrors.Is(outer, tt.sentinel), "sentinel survives further wrapping")
		})
	}

	assert.True(t, IsInvalidSample(fmt.Errorf("x: %w", NewInvalidSampleError("feedback", "record", "bad"))))
	assert.False(t, IsInvalidSample(NewInvalidPriceError("risk", "x", "bad")))
	assert.Equal(t, "XRPUSDT", NewUnknownSymbolError("risk", "x", "XRPUSDT").Context["symbol"])
}

func TestEngineError_Fatal(t *testing.T) {
	assert.True(t, NewConfigurationError("config", "validate", "bad").IsFatal())
	assert.True(t, NewEngineError(ErrorCategoryFatal, "engine", "new", "boom").IsFatal())
	assert.False(t, NewValidationError("risk", "x", "bad").IsFatal())
	assert.False(t, NewValidationError("risk", "x", "bad").IsRetryable())
}

func TestWrapError_Nil(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrorCategoryState, "engine", "x", "y"))
}

func TestErrorStats(t *testing.T) {
	stats := NewErrorStats(3)

	stats.RecordError(nil)
	assert.Zero(t, stats.GetErrorRate(ErrorCategoryValidation))

	stats.RecordError(NewValidationError("risk", "a", "1"))
	stats.RecordError(NewValidationError("risk", "b", "2"))
	stats.RecordError(stderrors.New("plain"))
	stats.RecordError(NewPositionError("risk", "c", ErrInvalidPrice))

	assert.Equal(t, 4, stats.TotalErrors)
	assert.InDelta(t, 0.5, stats.GetErrorRate(ErrorCategoryValidation), 1e-12)
	assert.InDelta(t, 0.25, stats.GetErrorRate(ErrorCategoryState), 1e-12)

	recent := stats.Recent()
	require.Len(t, recent, 3, "oldest error evicted")
	assert.Contains(t, recent[0], "risk] b")
	assert.Contains(t, recent[1], "unclassified error: plain")

	assert.True(t, stats.HasRecentErrors(ErrorCategoryPosition, 1))
	assert.False(t, stats.HasRecentErrors(ErrorCategoryValidation, 2))
	assert.False(t, stats.HasRecentErrors(ErrorCategoryFatal, 1))
}
