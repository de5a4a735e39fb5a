package browse

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PageCache stores fetched page bodies in a sql database so repeated
// session runs against slow or rate-limited sites can skip the network.
// Entries expire after the configured ttl; a ttl of zero keeps them
// forever.
type PageCache struct {
	db  *sql.DB
	ttl time.Duration
}

func NewPageCache(db *sql.DB, ttl time.Duration) (*PageCache, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS webpage_cache (
			url TEXT PRIMARY KEY,
			content_type TEXT NOT NULL,
			body BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, err
	}
	return &PageCache{db: db, ttl: ttl}, nil
}

// Get returns the cached body and content type for url. ok is false on a
// miss or an expired entry.
func (c *PageCache) Get(ctx context.Context, url string) (body []byte, contentType string, ok bool) {
	ctx, span := tracer.Start(ctx, "PageCache.Get", trace.WithAttributes(
		attribute.String("url", url),
	))
	defer span.End()

	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT body, content_type, fetched_at FROM webpage_cache WHERE url = ?",
		url,
	).Scan(&body, &contentType, &fetchedAt)
	if err != nil {
		return nil, "", false
	}
	if c.ttl > 0 && time.Since(time.Unix(fetchedAt, 0)) > c.ttl {
		span.AddEvent("entry expired")
		return nil, "", false
	}
	return body, contentType, true
}

func (c *PageCache) Put(ctx context.Context, url string, contentType string, body []byte) error {
	ctx, span := tracer.Start(ctx, "PageCache.Put", trace.WithAttributes(
		attribute.String("url", url),
	))
	defer span.End()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO webpage_cache (url, content_type, body, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			fetched_at = excluded.fetched_at
	`, url, contentType, body, time.Now().Unix())
	return err
}
