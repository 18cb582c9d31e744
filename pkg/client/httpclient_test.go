package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGET_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"h1"}`))
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL+"/", time.Second)
	c.RetryDelay = time.Millisecond

	resp, err := c.GET(context.Background(), "/hotels/h1")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, int32(3), calls.Load())
}

func TestGET_ReturnsLastServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"catalog down"}`))
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL, time.Second)
	c.RetryDelay = time.Millisecond

	resp, err := c.GET(context.Background(), "/hotels/h1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "catalog down", GetErrorMessage(resp))
	assert.Equal(t, int32(c.MaxRetries+1), calls.Load())
}

func TestGET_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewHttpClient(srv.URL, time.Second).GET(context.Background(), "/hotels/missing")
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, "Not Found", GetErrorMessage(resp))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGET_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHttpClient(url, time.Second)
	c.RetryDelay = time.Millisecond

	_, err := c.GET(context.Background(), "/hotels/h1")
	assert.Error(t, err)
}

func TestDecodeJSON_KeepsNumbers(t *testing.T) {
	resp := &Response{Response: &http.Response{StatusCode: http.StatusOK}, Body: []byte(`{"price":120.10}`)}
	var out map[string]any
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, json.Number("120.10"), out["price"])
}
