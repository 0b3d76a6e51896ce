package marketing

import (
	"context"
	"log/slog"

	"github.com/omtlabs/marketing-bridge/internal/logger"
	"github.com/omtlabs/marketing-bridge/internal/metrics"
)

// retryBudget is the number of additional attempts after a transient failure.
// Fixed at one: the policy absorbs a single upstream blip, it is not a general
// resilience layer. Not configurable.
const retryBudget = 1

// RetryInvoker decorates an Invoker with the bounded retry rule: a backend or
// timeout failure is retried exactly once, immediately and without backoff;
// every other category, and a second failure, surfaces as-is. Wraps only the
// remote path — local calls are not subject to transient network failure.
type RetryInvoker struct {
	next   Invoker
	logger *logger.Logger
}

func NewRetryInvoker(next Invoker, log *logger.Logger) *RetryInvoker {
	return &RetryInvoker{
		next:   next,
		logger: log.WithComponent("retry"),
	}
}

func (r *RetryInvoker) Invoke(ctx context.Context, q Query) (*QueryResult, *Failure) {
	res, fail := r.next.Invoke(ctx, q)

	for attempt := 0; attempt < retryBudget; attempt++ {
		if fail == nil || !fail.Retryable() {
			return res, fail
		}
		if ctx.Err() != nil {
			// The caller is gone; a retry would be wasted work.
			return res, fail
		}

		r.logger.Warn("retrying transient upstream failure",
			slog.String("category", string(fail.Category)),
			slog.String("detail", fail.Detail),
			slog.Int("upstream_status", fail.UpstreamStatus))
		metrics.UpstreamRetries.Inc()

		res, fail = r.next.Invoke(ctx, q)
	}

	return res, fail
}

// Filters passes through without retry: the catalog fetch is not part of the
// query path's retry contract.
func (r *RetryInvoker) Filters(ctx context.Context) ([]string, *Failure) {
	return r.next.Filters(ctx)
}

// Summary passes through without retry.
func (r *RetryInvoker) Summary(ctx context.Context) (map[string]interface{}, *Failure) {
	return r.next.Summary(ctx)
}
