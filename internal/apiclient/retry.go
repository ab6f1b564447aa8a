package apiclient

import (
	"context"
	"math"
	"net/http"
	"time"

	"algoshield.org/console/internal/config"
)

// idempotent methods are retried; POST never is.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindConnectivity:
		return true
	case KindServer:
		switch StatusOf(err) {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// backoff returns the delay before attempt n+1: InitialDelay * Multiplier^(n-1),
// capped at MaxDelay.
func backoff(r config.Retry, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := r.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(r.InitialDelay) * math.Pow(mult, float64(n-1))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		return r.MaxDelay
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
