package api_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := api.NewError(api.ErrCodeSend, "send failed").WithOp("send").WithCause(cause)

	assert.True(t, errors.Is(err, api.ErrSend))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, api.ErrRead))
	assert.Equal(t, "send: send failed", err.Error())

	wrapped := fmt.Errorf("tick: %w", err)
	var apiErr *api.Error
	assert.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, api.ErrCodeSend, apiErr.Code)
}

func TestErrorContextRendering(t *testing.T) {
	err := api.NewError(api.ErrCodeResolution, "no such host").WithContext("address", "nowhere")
	assert.Contains(t, err.Error(), "no such host")
	assert.Contains(t, err.Error(), "address:nowhere")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, api.ErrCodeOK, api.CodeOf(nil))
	assert.Equal(t, api.ErrCodeConnect, api.CodeOf(api.NewError(api.ErrCodeConnect, "x")))
	assert.Equal(t, api.ErrCodeRead, api.CodeOf(fmt.Errorf("%w: peer closed", api.ErrRead)))
	assert.Equal(t, api.ErrCodeInternal, api.CodeOf(errors.New("other")))
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "connect", api.ErrCodeConnect.String())
	assert.Equal(t, "response_too_large", api.ErrCodeResponseTooLarge.String())
	assert.Equal(t, "code(99)", api.ErrorCode(99).String())
}

func TestConnStateString(t *testing.T) {
	for state, want := range map[api.ConnState]string{
		api.StateConnecting:  "connecting",
		api.StateEstablished: "established",
		api.StateFailed:      "failed",
		api.StateClosed:      "closed",
	} {
		assert.Equal(t, want, state.String())
	}
}
