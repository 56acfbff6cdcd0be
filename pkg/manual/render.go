package manual

import (
	"context"
	"time"

	"intranet-portal/pkg/cache"
	"intranet-portal/pkg/chain"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/markdown"
	"intranet-portal/pkg/metrics"

	"go.uber.org/zap"
)

// Renderer turns article markdown into safe HTML.
type Renderer interface {
	Render(ctx context.Context, content string) string
}

// DirectRenderer renders on every call.
type DirectRenderer struct{}

// Render returns markdown.Render(content).
func (DirectRenderer) Render(_ context.Context, content string) string {
	return markdown.Render(content)
}

// CachedRenderer keeps rendered HTML in a cache chain. Entries are keyed by
// the SHA-256 of the markdown source, so an entry always matches the
// content it was rendered from and editing an article needs no
// invalidation.
type CachedRenderer struct {
	chain   *chain.Chain
	keys    *cache.KeyPattern
	ttl     time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewCachedRenderer creates a renderer backed by c. A nil chain renders
// directly.
func NewCachedRenderer(c *chain.Chain, ttl time.Duration, collector metrics.Collector, logger *logging.Logger) *CachedRenderer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &CachedRenderer{
		chain:   c,
		keys:    cache.NewKeyPattern("render", ":"),
		ttl:     ttl,
		metrics: collector,
		logger:  logger.Named("render"),
	}
}

// Render returns the sanitized HTML for content. Cache failures fall back
// to rendering in place.
func (r *CachedRenderer) Render(ctx context.Context, content string) string {
	start := time.Now()

	if r.chain == nil {
		html := markdown.Render(content)
		r.metrics.RecordRender(false, time.Since(start))
		return html
	}

	value, cached, err := r.chain.GetOrLoad(ctx, r.keys.ContentKey(content), r.ttl,
		func(context.Context) ([]byte, error) {
			return []byte(markdown.Render(content)), nil
		})
	if err != nil {
		r.logger.Warn("render cache unavailable", zap.Error(err))
		html := markdown.Render(content)
		r.metrics.RecordRender(false, time.Since(start))
		return html
	}

	r.metrics.RecordRender(cached, time.Since(start))
	return string(value)
}
