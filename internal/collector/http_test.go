package collector

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

const samplePage = `<html><head><title>Hello</title></head><body><p>Body</p></body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent/1.0" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/brotli", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(samplePage))
		_ = bw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		_, _ = gw.Write([]byte(samplePage))
		_ = gw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/deflate", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, _ = zw.Write([]byte(samplePage))
		_ = zw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "deflate")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/rawdeflate", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		_, _ = fw.Write([]byte(samplePage))
		_ = fw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "deflate")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/nonauthoritative", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><head><title>Caf\xe9</title></head></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(samplePage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testFetchOptions() FetchOptions {
	return FetchOptions{Timeout: 500 * time.Millisecond, UserAgent: "test-agent/1.0"}
}

func TestRestyFetcherDecodesBodies(t *testing.T) {
	srv := newPageServer(t)
	f := NewRestyFetcher(testFetchOptions(), nil)
	ctx := context.Background()

	for _, path := range []string{"/plain", "/brotli", "/gzip", "/deflate", "/rawdeflate", "/nonauthoritative"} {
		body := f.FetchPage(ctx, srv.URL+path)
		if string(body) != samplePage {
			t.Fatalf("FetchPage(%s) = %q, want sample page", path, body)
		}
	}

	latin := f.FetchPage(ctx, srv.URL+"/latin1")
	if !strings.Contains(string(latin), "Café") {
		t.Fatalf("latin1 body not converted to utf-8: %q", latin)
	}
}

func TestRestyFetcherFailuresReturnNil(t *testing.T) {
	srv := newPageServer(t)
	f := NewRestyFetcher(testFetchOptions(), nil)
	ctx := context.Background()

	if body := f.FetchPage(ctx, srv.URL+"/missing"); body != nil {
		t.Fatalf("404 should yield nil, got %q", body)
	}
	if body := f.FetchPage(ctx, srv.URL+"/slow"); body != nil {
		t.Fatalf("timeout should yield nil, got %q", body)
	}
	if body := f.FetchPage(ctx, "http://127.0.0.1:1/unreachable"); body != nil {
		t.Fatalf("connection failure should yield nil, got %q", body)
	}
}

func TestRestyFetcherTruncatesLargeBodies(t *testing.T) {
	srv := newPageServer(t)
	opts := testFetchOptions()
	opts.MaxBodyBytes = 10
	f := NewRestyFetcher(opts, nil)

	body := f.FetchPage(context.Background(), srv.URL+"/plain")
	if len(body) != 10 {
		t.Fatalf("expected body capped at 10 bytes, got %d", len(body))
	}
}

func TestCollyFetcher(t *testing.T) {
	srv := newPageServer(t)
	f := NewCollyFetcher(testFetchOptions(), nil)
	ctx := context.Background()

	if body := f.FetchPage(ctx, srv.URL+"/plain"); string(body) != samplePage {
		t.Fatalf("colly FetchPage = %q", body)
	}
	if body := f.FetchPage(ctx, srv.URL+"/missing"); body != nil {
		t.Fatalf("colly 404 should yield nil, got %q", body)
	}

	if body := f.FetchPage(ctx, srv.URL+"/nonauthoritative"); string(body) != samplePage {
		t.Fatalf("colly should accept every 2xx status like resty, got %q", body)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if body := f.FetchPage(cancelled, srv.URL+"/plain"); body != nil {
		t.Fatalf("cancelled context should yield nil")
	}
}

func TestCollyFetcherAbortsOnCancel(t *testing.T) {
	srv := newPageServer(t)
	f := NewCollyFetcher(FetchOptions{Timeout: 5 * time.Second, UserAgent: "test-agent/1.0"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if body := f.FetchPage(ctx, srv.URL+"/slow"); body != nil {
		t.Fatalf("cancelled request should yield nil, got %q", body)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("request ignored cancellation, took %v", elapsed)
	}
}

func TestIsZlibHeader(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write([]byte("x"))
	_ = zw.Close()
	if !isZlibHeader(buf.Bytes()[:2]) {
		t.Fatalf("zlib stream header not recognised: % x", buf.Bytes()[:2])
	}
	if isZlibHeader([]byte("<h")) {
		t.Fatalf("plain bytes mistaken for zlib header")
	}
}

func TestNewPageFetcherBackends(t *testing.T) {
	if f, err := NewPageFetcher("", FetchOptions{}, nil); err != nil {
		t.Fatalf("default backend error: %v", err)
	} else if _, ok := f.(*RestyFetcher); !ok {
		t.Fatalf("default backend should be resty, got %T", f)
	}
	if f, err := NewPageFetcher("COLLY", FetchOptions{}, nil); err != nil {
		t.Fatalf("colly backend error: %v", err)
	} else if _, ok := f.(*CollyFetcher); !ok {
		t.Fatalf("expected colly fetcher, got %T", f)
	}
	if _, err := NewPageFetcher("curl", FetchOptions{}, nil); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}
