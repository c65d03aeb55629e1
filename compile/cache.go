package compile

import (
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

// cacheEntry is one memoized compilation result.
type cacheEntry struct {
	expr     bytecode.Expression
	warnings []Warning
}

// Cache memoizes Compile results keyed by the verbatim source text, as
// ("Memoization caches are append-only and
// keyed by canonical text"). It is append-only — entries are never
// invalidated individually, only wholesale via Clear — modeled on the
// assembler's label/const tables (asm/parser.go: labels, consts), which are
// likewise built up incrementally and never selectively evicted.
type Cache struct {
	entries map[string]cacheEntry
	approx  rational.Approximator
}

// NewCache returns an empty compilation cache using the default
// float-literal approximation policy.
func NewCache() *Cache {
	return NewCacheWithApprox(rational.DefaultApproximator)
}

// NewCacheWithApprox returns an empty compilation cache that approximates
// float literals under approx (reactive.MaxDenominator/Tolerance).
func NewCacheWithApprox(approx rational.Approximator) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), approx: approx}
}

// Compile returns the memoized compilation of src, compiling and caching it
// on first use.
func (c *Cache) Compile(src string) (bytecode.Expression, []Warning, error) {
	if e, ok := c.entries[src]; ok {
		return e.expr, e.warnings, nil
	}
	expr, warnings, err := CompileWithApprox(src, c.approx)
	if err != nil {
		return expr, warnings, err
	}
	c.entries[src] = cacheEntry{expr: expr, warnings: warnings}
	return expr, warnings, nil
}

// Clear empties the cache wholesale.
func (c *Cache) Clear() {
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
