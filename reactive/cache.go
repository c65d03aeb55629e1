package reactive

import (
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/eval"
)

// cacheEntry is one (note, kind) slot's last-evaluated result. Gen records
// the Module generation counter at the time the entry was (re)computed, so
// tests can assert that an unrelated note's entries were left untouched by
// a given Evaluate call was left untouched by a later one.
type cacheEntry struct {
	value eval.Value
	err   error
	gen   uint64
	set   bool
}

// evalCache holds the per-note, per-slot evaluation cache that Module owns
// outright; it is not independently mutable by external code.
type evalCache struct {
	entries map[uint32]*[bytecode.NumKinds]cacheEntry
}

func newEvalCache() *evalCache {
	return &evalCache{entries: make(map[uint32]*[bytecode.NumKinds]cacheEntry)}
}

func (c *evalCache) get(note uint32, kind bytecode.Kind) (cacheEntry, bool) {
	slots, ok := c.entries[note]
	if !ok {
		return cacheEntry{}, false
	}
	e := slots[kind]
	return e, e.set
}

func (c *evalCache) set(note uint32, kind bytecode.Kind, v eval.Value, err error, gen uint64) {
	slots, ok := c.entries[note]
	if !ok {
		slots = &[bytecode.NumKinds]cacheEntry{}
		c.entries[note] = slots
	}
	slots[kind] = cacheEntry{value: v, err: err, gen: gen, set: true}
}

func (c *evalCache) removeNote(note uint32) {
	delete(c.entries, note)
}
