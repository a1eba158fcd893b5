package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// request is one templated call against the matcher service.
type request struct {
	kind   string
	method string
	path   string
	body   []byte
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Requests    []request
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	mu            sync.Mutex
	latencies     map[string][]time.Duration
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(kind string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	s.latencies[kind] = append(s.latencies[kind], duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the matcher service")
	concurrency := flag.Int("concurrency", 4, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	fragments := flag.String("fragments", "", "comma-separated museum numbers to match by id")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Requests:    buildRequests(*fragments),
	}

	fmt.Println("=== Fragment Matcher Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d templates\n", len(cfg.Requests))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func buildRequests(fragments string) []request {
	var reqs []request
	for _, seq := range []string{
		"0,1,2,1,5",
		"0,1,1,3,1,5",
		"0,2,1,1,1,4,5",
		"0,1,2,1,5;0,1,3,1,5",
	} {
		reqs = append(reqs, request{
			kind:   "sequence",
			method: http.MethodGet,
			path:   "/api/v1/match?sequence=" + url.QueryEscape(seq),
		})
	}
	for _, id := range strings.Split(fragments, ",") {
		if id = strings.TrimSpace(id); id != "" {
			reqs = append(reqs, request{
				kind:   "fragment",
				method: http.MethodGet,
				path:   "/api/v1/fragments/" + url.PathEscape(id) + "/match",
			})
		}
	}

	lines := [][][]string{
		{{"šumma I"}, {"awīlum I"}, {"ana I", "ina I"}, {}},
		{{"uk I"}, {"kur I"}, {"ap I"}, {"u I"}},
		{{"kur I", "uk I"}, {"ap I"}, {"ša I"}},
	}
	for _, qt := range []string{"AND", "OR", "LINE", "PHRASE"} {
		body, _ := json.Marshal(map[string]any{
			"type":   qt,
			"lemmas": []string{"kur I", "ap I"},
			"hits":   []map[string]any{{"museumNumber": "LOAD.1", "lines": lines}},
		})
		reqs = append(reqs, request{kind: "lemma", method: http.MethodPost, path: "/api/v1/lemmas/search", body: body})
	}
	return reqs
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			next := workerID
			for ctx.Err() == nil {
				req := cfg.Requests[next%len(cfg.Requests)]
				next++

				start := time.Now()
				resp, err := client.Do(mustNewRequest(ctx, cfg.BaseURL, req))
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(req.kind, elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(req.kind, elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func mustNewRequest(ctx context.Context, baseURL string, r request) *http.Request {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, baseURL+r.path, body)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	kinds := make([]string, 0, len(stats.latencies))
	for kind := range stats.latencies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		latencies := append([]time.Duration(nil), stats.latencies[kind]...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Println()
		fmt.Printf("=== Latency: %s (%d) ===\n", kind, len(latencies))
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
