package demangle

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type cached struct {
	name     string
	category Category
}

// Cache memoizes the results of another Demangler. Two-pass IBM listings
// present every public symbol twice.
type Cache struct {
	d     Demangler
	cache *lru.Cache[string, cached]
}

// NewCache wraps d with an LRU cache holding up to size names.
func NewCache(d Demangler, size int) (*Cache, error) {
	c, err := lru.New[string, cached](size)
	if err != nil {
		return nil, err
	}
	return &Cache{d: d, cache: c}, nil
}

func (c *Cache) Demangle(raw string) (string, Category) {
	if v, ok := c.cache.Get(raw); ok {
		return v.name, v.category
	}
	name, category := c.d.Demangle(raw)
	c.cache.Add(raw, cached{name: name, category: category})
	return name, category
}

// Len returns the number of cached names.
func (c *Cache) Len() int { return c.cache.Len() }
