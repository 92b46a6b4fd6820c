package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedSentinelMatches(t *testing.T) {
	err := ErrInsufficientStock.Withf("available=%d requested=%d", 4, 6)

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrRecordNotFound))
	assert.Equal(t, "Insufficient stock: available=4 requested=6", err.Error())
}

func TestIsThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("reserve: %w", ErrLockTimeout.Wrap(errors.New("55P03")))

	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrCreditLimitExceeded))
}

func TestAsFallsBackToInternal(t *testing.T) {
	appErr := As(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "Internal server error: boom", appErr.Error())

	// the shared sentinel must not be mutated by the fallback
	assert.Nil(t, ErrInternalServer.Err)

	appErr = As(fmt.Errorf("ctx: %w", ErrCreditLimitExceeded))
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
}
