package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// KindSQL runs a scalar query, typically SELECT COUNT(*)
const KindSQL = "sql"

// SQLProducer publishes the single value returned by a query.
//
// Properties: driver ("pgx" or "sqlite"), dsn, query (all required), title.
type SQLProducer struct {
	db    *sql.DB
	query string
	title string
}

// NewSQLProducer is the Factory of KindSQL
func NewSQLProducer(src *types.SourceInstance) (source.Producer, error) {
	driver := src.Property("driver", "")
	switch driver {
	case "pgx", "sqlite":
	case "postgres":
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	dsn := src.Property("dsn", "")
	query := src.Property("query", "")
	if dsn == "" || query == "" {
		return nil, errors.New("properties dsn and query are required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(1)

	return &SQLProducer{db: db, query: query, title: src.Property("title", src.Name)}, nil
}

// Produce implements source.Producer
func (p *SQLProducer) Produce(ctx context.Context) (event.Event, error) {
	var value any
	if err := p.db.QueryRowContext(ctx, p.query).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, source.Fail("query returned no rows", nil)
		}
		return event.Event{}, source.Fail("query failed", err)
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	ev := event.NewData(map[string]any{"value": value})
	ev.Title = p.title
	return ev, nil
}

// Close closes the connection pool
func (p *SQLProducer) Close() error {
	return p.db.Close()
}
