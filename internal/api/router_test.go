package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/naxeeb/news-aggregator-live/internal/processor"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFeed struct {
	batch *storage.Batch
	err   error
}

func (f *fakeFeed) Feed(context.Context) (*storage.Batch, error) { return f.batch, f.err }

func (f *fakeFeed) Sources() []string {
	return []string{"tbsnews.net", "aljazeera.com", "adweek.com"}
}

func sampleFeed() *fakeFeed {
	img := "https://www.tbsnews.net/a.jpg"
	return &fakeFeed{batch: &storage.Batch{
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		TTL:       5 * time.Minute,
		Articles: []processor.Record{
			{ID: "tbsnews.net-1", Title: "Dhaka metro extends hours", Summary: "Commuters", SourceLabel: "tbsnews.net", Interest: "Bangladesh", Image: &img, PubTs: 3},
			{ID: "aljazeera.com-1", Title: "Summit opens", Summary: "Leaders meet in Geneva", SourceLabel: "aljazeera.com", Interest: "International", PubTs: 2},
			{ID: "tbsnews.net-2", Title: "Cricket board meets", SourceLabel: "tbsnews.net", Interest: "Sports", PubTs: 1},
		},
	}}
}

func newTestEngine(feed FeedProvider, opts Options) *gin.Engine {
	return NewEngine(NewServer(feed, nil), opts, nil)
}

func doGet(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestAggregateReturnsArray(t *testing.T) {
	r := newTestEngine(sampleFeed(), Options{})
	w := doGet(r, "/api/aggregate")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a JSON array: %v", err)
	}
	if len(got) != 3 || got[0]["id"] != "tbsnews.net-1" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if got[1]["image"] != nil {
		t.Fatalf("missing image should serialize as null, got %v", got[1]["image"])
	}
	for _, key := range []string{"title", "link", "pubDate", "summary", "sourceLabel", "interest", "pubTs"} {
		if _, ok := got[0][key]; !ok {
			t.Fatalf("missing key %q in %v", key, got[0])
		}
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAggregateEmptyBatch(t *testing.T) {
	r := newTestEngine(&fakeFeed{batch: &storage.Batch{Articles: []processor.Record{}}}, Options{})
	w := doGet(r, "/api/aggregate")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected 200 [], got %d %s", w.Code, w.Body.String())
	}
}

func TestAggregateFailure(t *testing.T) {
	r := newTestEngine(&fakeFeed{err: errors.New("boom")}, Options{})
	w := doGet(r, "/api/aggregate")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"error":"failed to aggregate"}` {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Fatalf("internal detail leaked")
	}
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeArticles(t *testing.T, w *httptest.ResponseRecorder) []processor.Record {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Code != "ok" {
		t.Fatalf("code = %q", env.Code)
	}
	var items []processor.Record
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return items
}

func TestListArticlesFilters(t *testing.T) {
	r := newTestEngine(sampleFeed(), Options{})

	cases := []struct {
		query string
		ids   []string
	}{
		{"", []string{"tbsnews.net-1", "aljazeera.com-1", "tbsnews.net-2"}},
		{"?source=tbsnews.net", []string{"tbsnews.net-1", "tbsnews.net-2"}},
		{"?source=all&interest=sports", []string{"tbsnews.net-2"}},
		{"?q=GENEVA", []string{"aljazeera.com-1"}},
		{"?source=tbsnews.net&limit=1", []string{"tbsnews.net-1"}},
		{"?limit=abc&q=zzz", []string{}},
	}
	for _, tc := range cases {
		w := doGet(r, "/api/v1/articles"+tc.query)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.query, w.Code)
		}
		items := decodeArticles(t, w)
		if len(items) != len(tc.ids) {
			t.Fatalf("%s: expected %d items, got %d", tc.query, len(tc.ids), len(items))
		}
		for i, id := range tc.ids {
			if items[i].ID != id {
				t.Fatalf("%s: items[%d] = %s, want %s", tc.query, i, items[i].ID, id)
			}
		}
	}
}

func TestListSources(t *testing.T) {
	r := newTestEngine(sampleFeed(), Options{})
	w := doGet(r, "/api/v1/sources")

	var env struct {
		Data struct {
			Sources []sourceSummary `json:"sources"`
			Interests []string      `json:"interests"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []sourceSummary{{"tbsnews.net", 2}, {"aljazeera.com", 1}, {"adweek.com", 0}}
	if len(env.Data.Sources) != len(want) {
		t.Fatalf("sources = %+v", env.Data.Sources)
	}
	for i := range want {
		if env.Data.Sources[i] != want[i] {
			t.Fatalf("sources[%d] = %+v, want %+v", i, env.Data.Sources[i], want[i])
		}
	}
	if strings.Join(env.Data.Interests, ",") != "Bangladesh,International,Sports" {
		t.Fatalf("interests = %v", env.Data.Interests)
	}
}

func TestBasicAuthSkipsHealth(t *testing.T) {
	r := newTestEngine(sampleFeed(), Options{BasicAuthUser: "u", BasicAuthPass: "p"})

	if w := doGet(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("/health should bypass auth, got %d", w.Code)
	}
	if w := doGet(r, "/api/aggregate"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/aggregate", nil)
	req.SetBasicAuth("u", "p")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid credentials should pass, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := newTestEngine(sampleFeed(), Options{CORSAllowOrigins: []string{"https://app.example.com"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/aggregate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("unexpected preflight: %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unknown origin should not be allowed")
	}
}

func TestStaticFilesAndFallback(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>index</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log(1)"), 0o600); err != nil {
		t.Fatalf("write app.js: %v", err)
	}
	r := newTestEngine(sampleFeed(), Options{WebRoot: root})

	if w := doGet(r, "/"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "index") {
		t.Fatalf("/ should serve index.html, got %d %s", w.Code, w.Body.String())
	}
	if w := doGet(r, "/app.js"); !strings.Contains(w.Body.String(), "console.log") {
		t.Fatalf("/app.js not served: %s", w.Body.String())
	}
	if w := doGet(r, "/some/client/route"); !strings.Contains(w.Body.String(), "index") {
		t.Fatalf("unknown path should fall back to index.html")
	}
	if w := doGet(r, "/../../etc/passwd"); strings.Contains(w.Body.String(), "root:") {
		t.Fatalf("path traversal served a file outside the web root")
	}
	if w := doGet(r, "/api/unknown"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown api path should 404, got %d", w.Code)
	}
}
