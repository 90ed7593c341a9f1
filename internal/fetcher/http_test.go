package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var payload = []byte("\xff\xd8\xff\xe0 fake jpeg payload \x00\x01\x02")

func TestStreamPlainBodyAndUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	defer f.Close()

	resp, err := f.Stream(context.Background(), srv.URL+"/a.jpg")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch: got %q", body)
	}
	if resp.ContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", resp.ContentType)
	}
	if gotUA != config.DefaultUserAgent {
		t.Errorf("expected static user agent, got %q", gotUA)
	}
}

func TestStreamDecodesCompressedBodies(t *testing.T) {
	tests := []struct {
		encoding string
		encode   func([]byte) []byte
	}{
		{"gzip", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(b)
			zw.Close()
			return buf.Bytes()
		}},
		{"br", func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			bw.Write(b)
			bw.Close()
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			encoded := tt.encode(payload)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(encoded)
			}))
			defer srv.Close()

			f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
			resp, err := f.Stream(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(body, payload) {
				t.Errorf("decoded body mismatch: got %q", body)
			}
		})
	}
}

func TestStreamReturnsNon200AsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	resp, err := f.Stream(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("non-200 must not be a transport error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStreamNon200SkipsDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	resp, err := f.Stream(context.Background(), srv.URL+"/gone.jpg")
	if err != nil {
		t.Fatalf("a broken encoding on an error body must not hide the status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStreamBrokenEncodingIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("not gzip"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	_, err := f.Stream(context.Background(), srv.URL)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *types.FetchError, got %v", err)
	}
	if fe.IsRetryable() || fe.StatusCode != http.StatusOK {
		t.Errorf("decode failure should be a non-retryable error for status 200, got %+v", fe)
	}
}

func TestStreamInvalidURLIsNotRetryable(t *testing.T) {
	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	_, err := f.Stream(context.Background(), "http://bad host/a.jpg")

	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.IsRetryable() {
		t.Fatalf("expected a non-retryable *types.FetchError, got %v", err)
	}
}

func TestStreamTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewHTTPFetcher(config.DefaultConfig(), testLogger)
	_, err := f.Stream(context.Background(), addr)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *types.FetchError, got %T (%v)", err, err)
	}
	if fe.URL != addr {
		t.Errorf("expected URL %q, got %q", addr, fe.URL)
	}
}

func TestIsRetryableError(t *testing.T) {
	if isRetryableError(context.Canceled) {
		t.Error("cancellation must not be retryable")
	}
	if !isRetryableError(io.ErrUnexpectedEOF) {
		t.Error("unexpected EOF should be retryable")
	}
	if isRetryableError(nil) {
		t.Error("nil is not retryable")
	}
}
