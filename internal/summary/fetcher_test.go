package summary

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig(serverURL string, concurrency int) Config {
	return Config{
		BaseURL:     serverURL,
		UserAgent:   "filmwiki-test",
		Concurrency: concurrency,
		Timeout:     5 * time.Second,
	}
}

func TestFetchAllBasic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title, _ := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/"))
		if title == "Missing Film" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"extract": "Summary of %s"}`, title)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL, 4), testLogger)
	out, err := f.FetchAll(context.Background(), []string{"Film A", "Film/B", "Missing Film"})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if got := out["Film A"]; got == nil || *got != "Summary of Film A" {
		t.Errorf("Film A summary = %v", got)
	}
	if got := out["Film/B"]; got == nil || *got != "Summary of Film/B" {
		t.Errorf("title with slash should round-trip, got %v", got)
	}
	if out["Missing Film"] != nil {
		t.Errorf("404 should yield nil summary, got %q", *out["Missing Film"])
	}
}

// TestFetchAllConcurrencyCeiling asserts the in-flight request count never
// exceeds the configured permit count under randomized latencies and a
// failure rate.
func TestFetchAllConcurrencyCeiling(t *testing.T) {
	const (
		ceiling = 8
		titles  = 200
	)

	var inflight, peak atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(time.Duration(1+rand.Intn(15)) * time.Millisecond)

		// ~10% failures must not abort the batch.
		if strings.HasSuffix(r.URL.Path, "0") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"extract": "ok"}`)
	}))
	defer srv.Close()

	names := make([]string, titles)
	for i := range names {
		names[i] = fmt.Sprintf("Film %d", i)
	}

	f := NewFetcher(testConfig(srv.URL, ceiling), testLogger)
	out, err := f.FetchAll(context.Background(), names)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(out) != titles {
		t.Fatalf("expected %d results, got %d", titles, len(out))
	}
	if p := peak.Load(); p > ceiling {
		t.Errorf("in-flight requests peaked at %d, ceiling is %d", p, ceiling)
	}

	var found, missing int
	for _, s := range out {
		if s != nil {
			found++
		} else {
			missing++
		}
	}
	if found == 0 || missing == 0 {
		t.Errorf("expected a mix of successes and failures, got %d/%d", found, missing)
	}

	// Every failed title is present with a nil value, not absent.
	for _, name := range names {
		if _, ok := out[name]; !ok {
			t.Errorf("title %q missing from result map", name)
		}
	}
}

func TestFetchAllEmptyExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "disambiguation"}`)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL, 2), testLogger)
	out, err := f.FetchAll(context.Background(), []string{"Ambiguous"})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if out["Ambiguous"] != nil {
		t.Error("missing extract field should yield nil summary")
	}
}

func TestFetchAllCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"extract": "ok"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(testConfig(srv.URL, 2), testLogger)
	if _, err := f.FetchAll(ctx, []string{"A", "B", "C"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestFetchAllNoTitles(t *testing.T) {
	f := NewFetcher(testConfig("http://127.0.0.1:1", 2), testLogger)
	out, err := f.FetchAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty map, got %d entries", len(out))
	}
}
