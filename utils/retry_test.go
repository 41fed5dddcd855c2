package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	autoimply "github.com/boorubot/autoimply"
)

func TestRetryer_Do_Success(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxRetries: 3})

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestRetryer_Do_RetrySuccess(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
	})

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return autoimply.ErrTimeout // Retryable error
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if callCount != 3 {
		t.Errorf("callCount = %d, want 3", callCount)
	}
}

func TestRetryer_Do_MaxRetriesExceeded(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxRetries:   2,
		InitialDelay: 10 * time.Millisecond,
	})

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		return autoimply.ErrRateLimited
	})

	if !errors.Is(err, autoimply.ErrRateLimited) {
		t.Errorf("Do() error = %v, want ErrRateLimited", err)
	}
	// Initial call + 2 retries = 3 total calls
	if callCount != 3 {
		t.Errorf("callCount = %d, want 3", callCount)
	}
}

func TestRetryer_Do_NonRetryableError(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
	})

	callCount := 0
	nonRetryable := errors.New("validation failed")
	err := r.Do(context.Background(), func() error {
		callCount++
		return nonRetryable
	})

	if !errors.Is(err, nonRetryable) {
		t.Errorf("Do() error = %v, want %v", err, nonRetryable)
	}
	// Should only be called once since the error is not retryable
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	retries := 0
	r := NewRetryer(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		OnRetry: func(err error, delay time.Duration) {
			retries++
		},
	})

	r.Do(context.Background(), func() error {
		return autoimply.ErrTimeout
	})

	if retries != 3 {
		t.Errorf("OnRetry called %d times, want 3", retries)
	}
}

func TestDoWithResult(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
	})

	callCount := 0
	result, err := DoWithResult(context.Background(), r, func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", autoimply.ErrTimeout
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("DoWithResult() error = %v, want nil", err)
	}
	if result != "success" {
		t.Errorf("result = %q, want %q", result, "success")
	}
	if callCount != 2 {
		t.Errorf("callCount = %d, want 2", callCount)
	}
}

func TestRetryer_Do_SourceErrorRetryability(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxRetries:   1,
		InitialDelay: 10 * time.Millisecond,
	})

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		return autoimply.NewSourceError("danbooru", "fetch_tags", "forbidden").WithStatusCode(403)
	})

	if err == nil {
		t.Fatal("Do() error = nil, want source error")
	}
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1; 403 is not retryable", callCount)
	}
}
