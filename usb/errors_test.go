package usb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient("bulk read timed out", nil)))
	assert.False(t, IsRetryable(New(KindTransport, "stall")))
	assert.False(t, IsRetryable(New(KindPermission, "open")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableWrapped(t *testing.T) {
	err := fmt.Errorf("dfu block 3: %w", Transient("control timed out", nil))
	assert.True(t, IsRetryable(err))
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindParse, "status response too short", nil)
	assert.Equal(t, "parse: status response too short", err.Error())

	cause := errors.New("EPIPE")
	err = Wrap(KindTransport, "bulk write", cause)
	assert.Contains(t, err.Error(), "EPIPE")
	assert.ErrorIs(t, err, cause)
}
