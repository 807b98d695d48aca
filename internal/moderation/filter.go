// Package moderation implements the flagged-term heuristic applied to
// outgoing text.
package moderation

import (
	"strings"
	"sync"

	"wechat/internal/constants"
)

// Counter holds per-term occurrence counts. Counts only grow.
type Counter struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

func (c *Counter) increment(term string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[term]++
	return c.counts[term]
}

// Snapshot returns a copy of all non-zero counts.
func (c *Counter) Snapshot() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int, len(c.counts))
	for term, n := range c.counts {
		out[term] = n
	}
	return out
}

// Max returns the highest count of any term.
func (c *Counter) Max() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	highest := 0
	for _, n := range c.counts {
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Match is one flagged term found by a scan together with its count after
// the scan.
type Match struct {
	Term  string
	Count int
}

// Filter scans text for flagged terms with case-insensitive substring
// matching. Matching is not tokenized: "rock" also matches "rocket".
type Filter struct {
	terms     []string
	threshold int
	counter   *Counter
}

// NewFilter creates a filter over terms backed by counter. Empty terms fall
// back to the built-in list, a non-positive threshold to the default, and a
// nil counter to a fresh one.
func NewFilter(terms []string, threshold int, counter *Counter) *Filter {
	if len(terms) == 0 {
		terms = constants.DefaultFlaggedTerms
	}
	if threshold <= 0 {
		threshold = constants.DefaultOveruseThreshold
	}
	if counter == nil {
		counter = NewCounter()
	}

	normalized := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		normalized = append(normalized, term)
	}

	return &Filter{
		terms:     normalized,
		threshold: threshold,
		counter:   counter,
	}
}

// Scan reports whether text contains any flagged term. Each matching term's
// count is incremented by exactly one per call.
func (f *Filter) Scan(text string) bool {
	return len(f.ScanMatches(text)) > 0
}

// ScanMatches is Scan returning the matched terms and their updated counts.
func (f *Filter) ScanMatches(text string) []Match {
	lower := strings.ToLower(text)

	var matches []Match
	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			matches = append(matches, Match{Term: term, Count: f.counter.increment(term)})
		}
	}
	return matches
}

// Overused reports whether any term's count has reached the threshold.
func (f *Filter) Overused() bool {
	return f.counter.Max() >= f.threshold
}

// Counts returns a snapshot of the per-term counts.
func (f *Filter) Counts() map[string]int {
	return f.counter.Snapshot()
}

// Terms returns the normalized term list.
func (f *Filter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// Threshold is the count at which Overused turns true.
func (f *Filter) Threshold() int {
	return f.threshold
}
