package marketing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/omtlabs/marketing-bridge/internal/logger"
)

// QueryEngine is the in-process marketing backend. The bridge treats it as an
// opaque function from query text to a raw result or an error; SQLiteEngine is
// the production implementation.
type QueryEngine interface {
	FilterCustomers(ctx context.Context, q Query) (*RawResult, error)
	Filters() []string
	Summary(ctx context.Context) (map[string]interface{}, error)
}

// LocalInvoker executes queries against an in-process query engine. There is
// no network layer on this path, so only backend-internal faults and
// validation failures are reachable.
type LocalInvoker struct {
	engine QueryEngine
	logger *logger.Logger
}

func NewLocalInvoker(engine QueryEngine, log *logger.Logger) *LocalInvoker {
	return &LocalInvoker{
		engine: engine,
		logger: log.WithComponent("local-invoker"),
	}
}

// Invoke runs one query against the engine. Engine faults, including panics,
// never escape this boundary.
func (li *LocalInvoker) Invoke(ctx context.Context, q Query) (res *QueryResult, fail *Failure) {
	defer func() {
		if r := recover(); r != nil {
			li.logger.Error("query engine panicked", slog.Any("panic", r))
			res = nil
			fail = &Failure{
				Category: FailureBackend,
				Detail:   fmt.Sprintf("query engine panic: %v", r),
			}
		}
	}()

	if strings.TrimSpace(q.Text) == "" {
		return nil, &Failure{
			Category: FailureValidation,
			Detail:   "query text is empty",
		}
	}

	raw, err := li.engine.FilterCustomers(ctx, q)
	if err != nil {
		return nil, &Failure{
			Category: FailureBackend,
			Detail:   err.Error(),
		}
	}

	if !raw.Success {
		detail := raw.Error
		if detail == "" {
			detail = "query engine reported failure without detail"
		}
		return nil, &Failure{
			Category: FailureBackend,
			Detail:   detail,
		}
	}

	return Normalize(raw, q.Text, EngineFastPath), nil
}

// Close releases the engine's resources when it holds any.
func (li *LocalInvoker) Close() error {
	if closer, ok := li.engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Filters returns the engine's preset filter labels.
func (li *LocalInvoker) Filters(ctx context.Context) ([]string, *Failure) {
	return li.engine.Filters(), nil
}

// Summary returns customer statistics from the engine.
func (li *LocalInvoker) Summary(ctx context.Context) (map[string]interface{}, *Failure) {
	summary, err := li.engine.Summary(ctx)
	if err != nil {
		return nil, &Failure{
			Category: FailureBackend,
			Detail:   err.Error(),
		}
	}
	return summary, nil
}
