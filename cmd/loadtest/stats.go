package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// kindStats collects outcomes for one endpoint.
type kindStats struct {
	requests  int64
	errors    int64
	latencies []time.Duration
	codes     map[int]int64
}

// Stats is shared by all workers.
type Stats struct {
	mu    sync.Mutex
	kinds map[string]*kindStats
}

func NewStats() *Stats {
	return &Stats{kinds: make(map[string]*kindStats)}
}

// Record notes one request. A zero status means the request failed
// before a response arrived.
func (s *Stats) Record(kind string, d time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kinds[kind]
	if !ok {
		k = &kindStats{codes: make(map[int]int64)}
		s.kinds[kind] = k
	}
	k.requests++
	if err != nil || status < 200 || status >= 300 {
		k.errors++
	}
	if err == nil {
		k.latencies = append(k.latencies, d)
		k.codes[status]++
	}
}

func (s *Stats) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range s.kinds {
		n += k.requests
	}
	return n
}

// Report writes a summary per endpoint kind, in name order.
func (s *Stats) Report(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		k := s.kinds[name]
		fmt.Fprintf(w, "=== %s ===\n", name)
		fmt.Fprintf(w, "Requests:     %d\n", k.requests)
		fmt.Fprintf(w, "Errors:       %d (%.2f%%)\n", k.errors, 100*float64(k.errors)/float64(k.requests))
		if elapsed > 0 {
			fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(k.requests)/elapsed.Seconds())
		}
		lat := append([]time.Duration(nil), k.latencies...)
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		if len(lat) > 0 {
			fmt.Fprintf(w, "Latency:      min %s  p50 %s  p90 %s  p99 %s  max %s\n",
				lat[0], percentile(lat, 50), percentile(lat, 90), percentile(lat, 99), lat[len(lat)-1])
		}
		codes := make([]int, 0, len(k.codes))
		for code := range k.codes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  HTTP %d: %d\n", code, k.codes[code])
		}
		fmt.Fprintln(w)
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
