// Package counter tallies categorical values for run summaries.
package counter

import (
	"sort"
	"strings"

	"github.com/ppiankov/drillgrade/internal/model"
)

// Bucket names for values that carry no category
const (
	NullKey  = "(null)"
	BlankKey = "(blank)"
)

// Entry is one (key, count) pair
type Entry struct {
	Key   string
	Count int
}

// Counter maps observed values to occurrence counts. The zero value is
// ready to use.
type Counter struct {
	counts map[string]int
	total  int
}

// New creates an empty counter
func New() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Increment tallies one occurrence of key. Blank keys share one bucket.
func (c *Counter) Increment(key string) {
	c.Add(key, 1)
}

// IncrementValue tallies an observed field value, bucketing null and blank
// values separately
func (c *Counter) IncrementValue(v model.Value) {
	if !v.Present {
		c.Add(NullKey, 1)
		return
	}
	c.Add(v.Trimmed(), 1)
}

// Add tallies n occurrences of key
func (c *Counter) Add(key string, n int) {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if strings.TrimSpace(key) == "" {
		key = BlankKey
	}
	c.counts[key] += n
	c.total += n
}

// Count returns the tally for key
func (c *Counter) Count(key string) int {
	if strings.TrimSpace(key) == "" {
		key = BlankKey
	}
	return c.counts[key]
}

// Total returns the sum of all tallies
func (c *Counter) Total() int {
	return c.total
}

// Len returns the number of distinct keys
func (c *Counter) Len() int {
	return len(c.counts)
}

// Percent returns key's share of the total, 0..100
func (c *Counter) Percent(key string) float64 {
	if c.total == 0 {
		return 0
	}
	return float64(c.Count(key)) * 100 / float64(c.total)
}

// DescendingByCount returns all entries, highest count first. Equal counts
// are ordered by key so output is deterministic.
func (c *Counter) DescendingByCount() []Entry {
	entries := make([]Entry, 0, len(c.counts))
	for k, n := range c.counts {
		entries = append(entries, Entry{Key: k, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Merge adds every tally of other into c
func (c *Counter) Merge(other *Counter) {
	if other == nil {
		return
	}
	for k, n := range other.counts {
		c.Add(k, n)
	}
}
