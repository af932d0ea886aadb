package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindValidation, "bad input")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("outer: %w", Wrap(KindConnectivity, "venue down", fmt.Errorf("dial tcp")))
	assert.Equal(t, KindConnectivity, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindUpstreamServer, "503")))
	assert.True(t, Retryable(New(KindConnectivity, "timeout")))
	assert.True(t, Retryable(New(KindOverloaded, "shed")))
	assert.False(t, Retryable(New(KindUpstreamClient, "400")))
	assert.False(t, Retryable(New(KindValidation, "bad")))
	assert.False(t, Retryable(New(KindPersistence, "commit failed")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(KindValidation, "")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(KindNotFound, "")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(New(KindOverloaded, "")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindUpstreamServer, "")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}

func TestErrorStringCarriesCause(t *testing.T) {
	err := Wrap(KindPersistence, "commit failed", fmt.Errorf("deadlock"))
	assert.Contains(t, err.Error(), "PERSISTENCE_ERROR")
	assert.Contains(t, err.Error(), "deadlock")
	assert.EqualError(t, Unwrap(err), "deadlock")
}
