package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
		{599, true},
		{600, false},
	}
	for _, tt := range tests {
		if got := IsRetryableStatus(tt.code); got != tt.want {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}
	if !IsRetryableError(io.EOF) {
		t.Error("io.EOF should be retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Error("plain error should not be retryable")
	}
	if !IsRetryableError(&statusErr{code: 503}) {
		t.Error("503 status error should be retryable")
	}
	if IsRetryableError(&statusErr{code: 401}) {
		t.Error("401 status error should not be retryable")
	}
	if !IsRetryableError(fmt.Errorf("request: %w", &statusErr{code: 429})) {
		t.Error("wrapped 429 status error should be retryable")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	fallback := 2 * time.Second

	resp := &http.Response{Header: http.Header{}}
	if got := RetryAfterDuration(resp, fallback, 0); got != fallback {
		t.Errorf("no header: got %v, want fallback %v", got, fallback)
	}

	resp.Header.Set("Retry-After", "7")
	if got := RetryAfterDuration(resp, fallback, 0); got != 7*time.Second {
		t.Errorf("delta-seconds: got %v, want 7s", got)
	}

	if got := RetryAfterDuration(resp, fallback, 3*time.Second); got != 3*time.Second {
		t.Errorf("clamp: got %v, want 3s", got)
	}

	resp.Header.Set("Retry-After", time.Now().Add(10*time.Second).UTC().Format(http.TimeFormat))
	got := RetryAfterDuration(resp, fallback, 0)
	if got < 5*time.Second || got > 10*time.Second {
		t.Errorf("http-date: got %v, want ~10s", got)
	}

	if got := RetryAfterDuration(nil, fallback, 0); got != fallback {
		t.Errorf("nil resp: got %v, want fallback", got)
	}
}

func TestJitterSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	JitterSleep(ctx, 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled ctx should return promptly, took %v", elapsed)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	start := time.Now()
	JitterSleep(context.Background(), 20*time.Millisecond)
	elapsed := time.Since(start)
	if elapsed < 5*time.Millisecond {
		t.Errorf("slept %v, want at least 10ms-ish", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("slept %v, way past +50%% bound", elapsed)
	}
}
