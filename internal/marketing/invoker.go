package marketing

import (
	"context"

	"github.com/omtlabs/marketing-bridge/internal/config"
	"github.com/omtlabs/marketing-bridge/internal/logger"
)

// Invoker executes queries against the marketing backend. There are exactly
// two implementations, one per transport: LocalInvoker (in-process query
// engine) and RemoteInvoker (HTTP to a remote marketing service).
//
// Invoke never lets a fault escape: every failure path comes back as a
// *Failure. Exactly one of the two return values is non-nil.
type Invoker interface {
	Invoke(ctx context.Context, q Query) (*QueryResult, *Failure)

	// Filters returns the preset filter labels the backend accepts.
	Filters(ctx context.Context) ([]string, *Failure)

	// Summary returns backend-wide customer statistics.
	Summary(ctx context.Context) (map[string]interface{}, *Failure)
}

// NewInvoker builds the invoker selected by the configured bridge mode.
// Selection happens once here; nothing branches on transport mode per call.
// Only the remote path is wrapped with the retry policy: local calls are not
// subject to transient network failure.
func NewInvoker(cfg *config.Config, log *logger.Logger) (Invoker, error) {
	switch cfg.BridgeMode {
	case config.BridgeModeHTTP:
		return NewRetryInvoker(NewRemoteInvoker(cfg, log), log), nil
	default:
		engine, err := NewSQLiteEngine(cfg.MarketingDatabaseDSN, cfg.Filters)
		if err != nil {
			return nil, err
		}
		return NewLocalInvoker(engine, log), nil
	}
}
