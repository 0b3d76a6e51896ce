package marketing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/omtlabs/marketing-bridge/internal/config"
	_ "modernc.org/sqlite"
)

const customersSchema = `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	segment TEXT NOT NULL,
	lifetime_value REAL NOT NULL DEFAULT 0,
	total_purchases INTEGER NOT NULL DEFAULT 0,
	avg_order_value REAL NOT NULL DEFAULT 0,
	last_purchase_date TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_customers_segment ON customers(segment);
CREATE INDEX IF NOT EXISTS idx_customers_last_purchase ON customers(last_purchase_date);
`

const customerColumns = "id, name, segment, lifetime_value, total_purchases, avg_order_value, last_purchase_date"

// SQLiteEngine is the in-process marketing backend. Preset filter labels are
// compiled to SQL predicates from the configured catalog; free-text queries
// fall back to a name/segment search. Repeated queries are answered from a
// small in-memory cache and tagged with the "cached" engine.
type SQLiteEngine struct {
	db      *sql.DB
	filters []config.PresetFilter

	mu    sync.Mutex
	cache map[string]*RawResult
}

// NewSQLiteEngine opens (or creates) the customer database and prepares the
// preset filter catalog.
func NewSQLiteEngine(dsn string, filters []config.PresetFilter) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(customersSchema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteEngine{
		db:      db,
		filters: filters,
		cache:   make(map[string]*RawResult),
	}, nil
}

// Close releases the underlying database handle.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// Seed inserts customer records, replacing existing rows with the same id.
func (e *SQLiteEngine) Seed(ctx context.Context, records []CustomerRecord) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO customers ("+customerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Segment,
			r.LifetimeValue, r.TotalPurchases, r.AvgOrderValue, r.LastPurchaseDate); err != nil {
			return fmt.Errorf("seed customer %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	// Seeding invalidates any cached results.
	e.mu.Lock()
	e.cache = make(map[string]*RawResult)
	e.mu.Unlock()

	return nil
}

// Filters returns the preset filter labels in catalog order.
func (e *SQLiteEngine) Filters() []string {
	labels := make([]string, 0, len(e.filters))
	for _, f := range e.filters {
		labels = append(labels, f.Label)
	}
	return labels
}

// FilterCustomers resolves one query. Resolution order: cache, exact preset
// label (fast path, no query understanding needed), keyword match against the
// preset predicates, then a plain name/segment search.
func (e *SQLiteEngine) FilterCustomers(ctx context.Context, q Query) (*RawResult, error) {
	e.mu.Lock()
	if cached, ok := e.cache[q.Text]; ok {
		e.mu.Unlock()
		hit := *cached
		hit.EngineUsed = string(EngineCached)
		return &hit, nil
	}
	e.mu.Unlock()

	start := time.Now()

	where, args, engine := e.resolve(q.Text)

	query := fmt.Sprintf(
		"SELECT %s FROM customers WHERE %s ORDER BY lifetime_value DESC",
		customerColumns, where)

	limit := q.Limit
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute filter query: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	customers := []CustomerRecord{}

	for rows.Next() {
		var r CustomerRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Segment,
			&r.LifetimeValue, &r.TotalPurchases, &r.AvgOrderValue, &r.LastPurchaseDate); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		ids = append(ids, r.ID)
		customers = append(customers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	count := len(ids)
	result := &RawResult{
		Success:       true,
		Query:         q.Text,
		EngineUsed:    string(engine),
		TokensUsed:    0,
		ExecutionTime: time.Since(start).Seconds(),
		Count:         &count,
		CustomerIDs:   ids,
		Customers:     customers,
		SQL:           query,
		Metadata: map[string]interface{}{
			"source": "sqlite",
		},
	}

	e.mu.Lock()
	e.cache[q.Text] = result
	e.mu.Unlock()

	return result, nil
}

// resolve compiles query text to a SQL predicate and the engine tag that
// describes how the predicate was chosen.
func (e *SQLiteEngine) resolve(text string) (where string, args []interface{}, engine Engine) {
	// Exact preset label: the predicate is known up front.
	for _, f := range e.filters {
		if f.Label == text {
			return f.Where, nil, EngineFastPath
		}
	}

	// Keyword match against the preset catalog: "show me vip customers"
	// resolves through the VIP predicate.
	lowered := strings.ToLower(text)
	for _, f := range e.filters {
		for _, keyword := range filterKeywords(f.Label) {
			if strings.Contains(lowered, keyword) {
				return f.Where, nil, EnginePresetFilter
			}
		}
	}

	// Plain search over name and segment.
	pattern := "%" + strings.TrimSpace(text) + "%"
	return "name LIKE ? OR segment LIKE ?", []interface{}{pattern, pattern}, EngineFastPath
}

// filterKeywords derives the match keywords for a preset filter label.
func filterKeywords(label string) []string {
	lowered := strings.ToLower(label)
	switch {
	case strings.Contains(lowered, "vip"):
		return []string{"vip"}
	case strings.Contains(lowered, "high value"):
		return []string{"high value", "big spender"}
	case strings.Contains(lowered, "active"):
		return []string{"active", "recent"}
	case strings.Contains(lowered, "frequent"):
		return []string{"frequent", "loyal"}
	case strings.Contains(lowered, "churn"):
		return []string{"churn", "inactive", "at risk"}
	}
	return nil
}

// Summary returns aggregate customer statistics.
func (e *SQLiteEngine) Summary(ctx context.Context) (map[string]interface{}, error) {
	var (
		total    int
		totalLTV sql.NullFloat64
		avgLTV   sql.NullFloat64
		avgOrder sql.NullFloat64
	)

	row := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(lifetime_value), AVG(lifetime_value), AVG(avg_order_value) FROM customers")
	if err := row.Scan(&total, &totalLTV, &avgLTV, &avgOrder); err != nil {
		return nil, fmt.Errorf("aggregate customers: %w", err)
	}

	segments := map[string]int{}
	rows, err := e.db.QueryContext(ctx,
		"SELECT segment, COUNT(*) FROM customers GROUP BY segment")
	if err != nil {
		return nil, fmt.Errorf("aggregate segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segment string
		var n int
		if err := rows.Scan(&segment, &n); err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments[segment] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}

	return map[string]interface{}{
		"total_customers":        total,
		"total_lifetime_value":   totalLTV.Float64,
		"average_lifetime_value": avgLTV.Float64,
		"average_order_value":    avgOrder.Float64,
		"segments":               segments,
	}, nil
}
