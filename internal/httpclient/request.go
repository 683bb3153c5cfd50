package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrDecode is returned when a successful response cannot be decoded into the result.
var ErrDecode = errors.New("decode response body")

// Request is the interface for building and executing HTTP requests.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result any) Request
}

// Response wraps http.Response with the fully read body.
type Response struct {
	*http.Response
	body []byte
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the response body as string.
func (r *Response) String() string {
	return string(r.body)
}

// IsError returns true if the status code indicates an error (>= 400).
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// RetryAfter parses the Retry-After header, in seconds or as an HTTP date.
func (r *Response) RetryAfter() (time.Duration, bool) {
	v := strings.TrimSpace(r.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

type requestBuilder struct {
	c            *InstrumentedClient
	headers      http.Header
	query        url.Values
	body         any
	result       any
	errorHandler ResponseErrorHandler
	labels       []*Label
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, path)
}

// SetBody sets the request body. Values other than []byte and string are JSON encoded.
func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers.Set(key, value)
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult sets the target for JSON decoding of a successful response.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) resolve(path string) string {
	full := path
	if r.c.baseURL != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = strings.TrimSuffix(r.c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + r.query.Encode()
	}
	return full
}

func (r *requestBuilder) encodeBody() (io.Reader, []byte, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil, nil
	case []byte:
		return bytes.NewReader(b), b, nil
	case string:
		return strings.NewReader(b), []byte(b), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request body: %w", err)
		}
		if r.headers.Get("Content-Type") == "" {
			r.headers.Set("Content-Type", "application/json")
		}
		return bytes.NewReader(raw), raw, nil
	}
}

func (r *requestBuilder) execute(ctx context.Context, method, path string) (*Response, error) {
	ctx, span := r.c.tracer.Start(ctx, "http."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", r.c.providerName),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		r.record(ctx, status, time.Since(start))
	}()

	bodyReader, raw, err := r.encodeBody()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode body")
		return nil, err
	}
	if r.c.traceBodies && raw != nil {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(raw))))
	}

	req, err := http.NewRequestWithContext(ctx, method, r.resolve(path), bodyReader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = r.headers

	resp, err := r.c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if r.c.traceBodies {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(body))))
	}

	response := &Response{Response: resp, body: body}

	if r.errorHandler != nil {
		if herr := r.errorHandler(response); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			return response, herr
		}
	} else if response.IsError() {
		err := fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return response, err
	}

	if r.result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode body")
			return response, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	return response, nil
}

func (r *requestBuilder) record(ctx context.Context, status int, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.c.providerName),
		attribute.Bool("success", status > 0 && status < 400),
		attribute.Int("status", status),
	}
	for _, label := range r.labels {
		attrs = append(attrs, attribute.String(label.Key, label.Value))
	}

	opt := metric.WithAttributes(attrs...)
	r.c.requestCounter.Add(ctx, 1, opt)
	r.c.requestDuration.Record(ctx, elapsed.Seconds(), opt)
}
