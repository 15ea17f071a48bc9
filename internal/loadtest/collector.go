// Package loadtest drives many realtime chat clients against one live class
// and aggregates connect and echo latencies into a percentile report.
package loadtest

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// Collector aggregates metrics from many load clients. All methods are safe
// for concurrent use.
type Collector struct {
	mu               sync.Mutex
	connectLatencies []time.Duration
	echoLatencies    []time.Duration
	sent             int
	lost             int
	errors           int
	connections      int
	startTime        time.Time
}

// NewCollector creates a Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// AddConnect records a successful connection and its latency.
func (c *Collector) AddConnect(d time.Duration) {
	c.mu.Lock()
	c.connectLatencies = append(c.connectLatencies, d)
	c.connections++
	c.mu.Unlock()
}

// AddSent counts one chat line handed to the channel.
func (c *Collector) AddSent() {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
}

// AddEcho records the time from send to the sender seeing its own echo.
func (c *Collector) AddEcho(d time.Duration) {
	c.mu.Lock()
	c.echoLatencies = append(c.echoLatencies, d)
	c.mu.Unlock()
}

// AddLost counts sent lines whose echo never arrived.
func (c *Collector) AddLost(n int) {
	c.mu.Lock()
	c.lost += n
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Summary is a point-in-time copy of the counters.
type Summary struct {
	Connections int
	Sent        int
	Echoed      int
	Lost        int
	Errors      int
}

// Summary returns the current counters.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		Connections: c.connections,
		Sent:        c.sent,
		Echoed:      len(c.echoLatencies),
		Lost:        c.lost,
		Errors:      c.errors,
	}
}

// Report writes a summary with latency percentiles to w.
func (c *Collector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)

	fmt.Fprintln(w, "\n=== Load Test Results ===")
	fmt.Fprintf(w, "Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(w, "Connections:  %d\n", c.connections)
	fmt.Fprintf(w, "Sent:         %d\n", c.sent)
	fmt.Fprintf(w, "Echoed:       %d\n", len(c.echoLatencies))
	fmt.Fprintf(w, "Lost:         %d\n", c.lost)
	fmt.Fprintf(w, "Errors:       %d\n", c.errors)

	if c.sent > 0 {
		fmt.Fprintf(w, "Loss rate:    %.2f%%\n", float64(c.lost)/float64(c.sent)*100)
	}

	if len(c.connectLatencies) > 0 {
		fmt.Fprintln(w, "\n--- Connect Latency ---")
		printPercentiles(w, c.connectLatencies)
	}
	if len(c.echoLatencies) > 0 {
		fmt.Fprintln(w, "\n--- Echo Latency ---")
		printPercentiles(w, c.echoLatencies)
	}
	fmt.Fprintln(w)
}

func printPercentiles(w io.Writer, durations []time.Duration) {
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	p50 := sorted[n/2]
	p95 := sorted[int(math.Ceil(float64(n)*0.95))-1]
	p99 := sorted[int(math.Ceil(float64(n)*0.99))-1]

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg := sum / time.Duration(n)

	fmt.Fprintf(w, "  avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)\n",
		avg.Round(time.Microsecond),
		p50.Round(time.Microsecond),
		p95.Round(time.Microsecond),
		p99.Round(time.Microsecond),
		sorted[n-1].Round(time.Microsecond),
		n,
	)
}
