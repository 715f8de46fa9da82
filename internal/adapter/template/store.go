// Package template implements the template store cache and renderer (C6):
// a sync.Map-cached wrapper around the postgres-backed TemplateStore, and a
// literal {{var}} substitution renderer grounded on the original's
// regex-based _substitute_variables (not Go's text/template, since the
// source project does not HTML-escape interpolated values).
package template

import (
	"sync"

	"github.com/dealer-comms/engine/internal/domain"
)

// CachedStore wraps a domain.TemplateStore with an in-process cache keyed by
// tenant/event/channel, the way the teacher's AI model cache avoids
// re-querying for values that rarely change.
type CachedStore struct {
	inner domain.TemplateStore
	cache sync.Map // cacheKey -> domain.Template
}

// NewCachedStore constructs a cache-wrapped template store.
func NewCachedStore(inner domain.TemplateStore) *CachedStore {
	return &CachedStore{inner: inner}
}

func cacheKey(tenantID, eventType string, commType domain.CommunicationType) string {
	t := tenantID
	if t == "" {
		t = "global"
	}
	return t + ":" + eventType + ":" + string(commType)
}

// Resolve returns the cached template for (tenantID, eventType, commType),
// falling through to the backing store and caching the result on a miss.
func (c *CachedStore) Resolve(ctx domain.Context, tenantID string, eventType string, commType domain.CommunicationType) (domain.Template, error) {
	key := cacheKey(tenantID, eventType, commType)
	if v, ok := c.cache.Load(key); ok {
		return v.(domain.Template), nil
	}

	tpl, err := c.inner.Resolve(ctx, tenantID, eventType, commType)
	if err != nil {
		return domain.Template{}, err
	}
	c.cache.Store(key, tpl)
	return tpl, nil
}

// Invalidate drops a cached template, forcing the next Resolve to re-query.
func (c *CachedStore) Invalidate(tenantID, eventType string, commType domain.CommunicationType) {
	c.cache.Delete(cacheKey(tenantID, eventType, commType))
}

var _ domain.TemplateStore = (*CachedStore)(nil)
