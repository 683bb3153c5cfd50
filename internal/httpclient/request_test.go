package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, srv *httptest.Server) *InstrumentedClient {
	t.Helper()
	c, err := NewInstrumentedClient(
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL+"/api"),
		WithProviderName("test"),
		WithHeaders(map[string]string{"X-API-Key": "secret"}),
	)
	if err != nil {
		t.Fatalf("NewInstrumentedClient() error = %v", err)
	}
	return c
}

func TestRequest_GetDecodesResultAndEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/markets" {
			t.Errorf("path = %s, want /api/markets", r.URL.Path)
		}
		if got := r.URL.Query().Get("next_cursor"); got != "MTA=" {
			t.Errorf("next_cursor = %q, want %q", got, "MTA=")
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q, want secret", got)
		}
		_, _ = io.WriteString(w, `{"name":"btc"}`)
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	_, err := newTestClient(t, srv).NewRequest().
		SetQueryParam("next_cursor", "MTA=").
		SetResult(&out).
		Get(context.Background(), "/markets")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Name != "btc" {
		t.Errorf("Name = %q, want btc", out.Name)
	}
}

func TestRequest_PostEncodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"size":"1.5"}` {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).NewRequest().
		SetBody(map[string]string{"size": "1.5"}).
		Post(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
}

func TestRequest_ErrorHandlerSeesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	errLimited := errors.New("limited")
	var hint time.Duration
	_, err := newTestClient(t, srv).NewRequestWithOptions(
		WithLabels(NewLabel("endpoint", "book")),
		WithResponseErrorHandler(func(resp *Response) error {
			if resp.StatusCode == http.StatusTooManyRequests {
				hint, _ = resp.RetryAfter()
				return errLimited
			}
			return nil
		}),
	).Get(context.Background(), "book")

	if !errors.Is(err, errLimited) {
		t.Fatalf("err = %v, want errLimited", err)
	}
	if hint != 2*time.Second {
		t.Errorf("RetryAfter = %s, want 2s", hint)
	}
}

func TestRequest_DecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	var out map[string]any
	_, err := newTestClient(t, srv).NewRequest().SetResult(&out).Get(context.Background(), "x")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestRequest_UnhandledErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).NewRequest().Get(context.Background(), "x")
	if err == nil {
		t.Fatal("Get() should fail on 502 without an error handler")
	}
	if resp == nil || resp.StatusCode != http.StatusBadGateway {
		t.Errorf("response should still be returned with status 502")
	}
}
