package linker

import (
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"iris/internal/ast"
)

// CachingResolver memoises a slower resolver, such as one that reads and
// decodes module files. Concurrent misses for one path share a single
// lookup. Failed lookups are not cached.
type CachingResolver struct {
	inner ast.Resolver
	cache *ristretto.Cache[string, *ast.Program]
	group singleflight.Group
}

func NewCachingResolver(inner ast.Resolver, maxModules int64) (*CachingResolver, error) {
	if maxModules <= 0 {
		maxModules = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *ast.Program]{
		NumCounters: maxModules * 10,
		MaxCost:     maxModules,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachingResolver{inner: inner, cache: cache}, nil
}

func (r *CachingResolver) Resolve(path string) (*ast.Program, bool) {
	if p, ok := r.cache.Get(path); ok {
		return p, true
	}
	v, _, _ := r.group.Do(path, func() (interface{}, error) {
		p, ok := r.inner.Resolve(path)
		if !ok {
			return nil, nil
		}
		r.cache.Set(path, p, 1)
		r.cache.Wait()
		return p, nil
	})
	p, ok := v.(*ast.Program)
	return p, ok && p != nil
}

func (r *CachingResolver) Close() {
	r.cache.Close()
}
