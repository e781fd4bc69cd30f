package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u-1", body["userId"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"job-1","status":"IN_QUEUE"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.PostJSON(context.Background(), server.URL,
		map[string]string{"Authorization": "Bearer token"},
		map[string]interface{}{"userId": "u-1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"job-1","status":"IN_QUEUE"}`, string(resp.Body))
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, WithRetries(2), WithBaseDelay(time.Millisecond))
	_, err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("missing input"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, WithRetries(3), WithBaseDelay(time.Millisecond))
	_, err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{})

	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "missing input", statusErr.Body)
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, WithRetries(1), WithBaseDelay(time.Millisecond))
	_, err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestPostJSON_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(5*time.Second, WithRetries(2), WithBaseDelay(time.Millisecond))
	_, err := client.PostJSON(ctx, server.URL, nil, map[string]string{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestTimeout))
}

func TestPostJSON_UnmarshalablePayload(t *testing.T) {
	client := NewClient(time.Second)
	_, err := client.PostJSON(context.Background(), "http://127.0.0.1:1", nil, map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
}
