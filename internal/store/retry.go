package store

import (
	"context"

	"github.com/sells-group/poi-cli/internal/resilience"
)

// RetryStorage retries transient failures of the wrapped Storage.
type RetryStorage struct {
	next   Storage
	driver string
	policy resilience.RetryConfig
}

// WithRetry wraps next so that each call is retried under policy.
func WithRetry(next Storage, driver string, policy resilience.RetryConfig) *RetryStorage {
	return &RetryStorage{next: next, driver: driver, policy: policy}
}

// Unwrap returns the wrapped Storage.
func (r *RetryStorage) Unwrap() Storage { return r.next }

// Get implements Storage.
func (r *RetryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return resilience.DoVal(ctx, withLog(r.policy, r.driver, "get"), func(ctx context.Context) ([]byte, error) {
		return r.next.Get(ctx, key)
	})
}

// Set implements Storage.
func (r *RetryStorage) Set(ctx context.Context, key string, value []byte) error {
	return resilience.Do(ctx, withLog(r.policy, r.driver, "set"), func(ctx context.Context) error {
		return r.next.Set(ctx, key, value)
	})
}

// Delete implements Storage.
func (r *RetryStorage) Delete(ctx context.Context, key string) error {
	return resilience.Do(ctx, withLog(r.policy, r.driver, "delete"), func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

// Close implements Storage. It is never retried.
func (r *RetryStorage) Close() error {
	return r.next.Close()
}

func withLog(policy resilience.RetryConfig, driver, op string) resilience.RetryConfig {
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry(driver, op)
	}
	return policy
}
