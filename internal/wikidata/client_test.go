package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testClient(serverURL string, batchSize int) *Client {
	cfg := config.DefaultConfig()
	cfg.Sources.SPARQLEndpoint = serverURL
	cfg.Fetcher.MaxRetries = 3
	cfg.Fetcher.RetryDelay = time.Millisecond
	cfg.Fetcher.QueryBatchSize = batchSize
	cfg.Fetcher.BatchInterval = 0
	return NewClient(cfg, testLogger)
}

func bindingsResponse(rows []map[string]string) string {
	type value struct {
		Value string `json:"value"`
	}
	bindings := make([]map[string]value, len(rows))
	for i, row := range rows {
		b := make(map[string]value, len(row))
		for k, v := range row {
			b[k] = value{Value: v}
		}
		bindings[i] = b
	}
	out, _ := json.Marshal(map[string]any{
		"results": map[string]any{"bindings": bindings},
	})
	return string(out)
}

func TestFetchMetadataMergesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		query := r.Form.Get("query")
		if !strings.Contains(query, "wd:Q1 wd:Q2") {
			t.Errorf("query missing VALUES ids: %s", query)
		}

		fmt.Fprint(w, bindingsResponse([]map[string]string{
			// Multi-valued rows for Q1: same imdb/date, different people.
			{"film": "http://www.wikidata.org/entity/Q1", "imdb": "tt123", "date": "2005-03-04T00:00:00Z", "personLabel": "Y"},
			{"film": "http://www.wikidata.org/entity/Q1", "imdb": "tt123", "date": "2005-03-04T00:00:00Z", "personLabel": "X"},
			{"film": "http://www.wikidata.org/entity/Q1", "personLabel": "X"},
			// Q2 has a malformed date and nothing else.
			{"film": "http://www.wikidata.org/entity/Q2", "date": "unknown"},
		}))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 200)
	meta, err := c.FetchMetadata(context.Background(), []string{"Q1", "Q2"})
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}

	q1 := meta["Q1"]
	if q1 == nil {
		t.Fatal("missing Q1")
	}
	if q1.IMDbID == nil || *q1.IMDbID != "tt123" {
		t.Errorf("Q1 imdb = %v", q1.IMDbID)
	}
	if q1.Year == nil || *q1.Year != 2005 {
		t.Errorf("Q1 year = %v", q1.Year)
	}
	if len(q1.People) != 2 || q1.People[0] != "X" || q1.People[1] != "Y" {
		t.Errorf("Q1 people should be deduplicated and sorted, got %v", q1.People)
	}

	q2 := meta["Q2"]
	if q2 == nil {
		t.Fatal("malformed date must not drop the entity")
	}
	if q2.IMDbID != nil || q2.Year != nil || len(q2.People) != 0 {
		t.Errorf("Q2 should be empty metadata: %+v", q2)
	}
}

func TestFetchMetadataBatches(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, bindingsResponse(nil))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	qids := []string{"Q1", "Q2", "Q3", "Q4", "Q5"}
	if _, err := c.FetchMetadata(context.Background(), qids); err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 batches for 5 ids at size 2, got %d", requests.Load())
	}
}

func TestQueryRetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 200)
	_, err := c.Query(context.Background(), "SELECT * WHERE {}")
	if err == nil {
		t.Fatal("expected error")
	}
	var qerr *types.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("expected QueryError, got %T: %v", err, err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestBuildMetadataQuery(t *testing.T) {
	q := buildMetadataQuery([]string{"Q42", "Q7"})
	for _, want := range []string{
		"VALUES ?film { wd:Q42 wd:Q7 }",
		"wdt:P345", "wdt:P577", "wdt:P57", "wdt:P161", "wdt:P162", "wdt:P58",
		`wikibase:language "en"`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1994-05-20T00:00:00Z", 1994, true},
		{"2005-03-04", 2005, true},
		{"abcd-01-01", 0, false},
		{"", 0, false},
		{"19", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseYear(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseYear(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
