package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Request describes one upstream call.
type Request struct {
	Method string
	URL    string
	Header http.Header
}

// Response is what the transport hands back: status and the full body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport issues a request. Implementations must honour ctx cancellation
// and expose the HTTP status code.
type Transport interface {
	Issue(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc is a function adapter for Transport.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

func (f TransportFunc) Issue(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// MaxBodySize caps how much of a response body HTTPTransport reads.
const MaxBodySize = 8 << 20

// ErrBodyTooLarge is returned when a response body exceeds the cap.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPTransport issues requests over net/http with HTTP/2 enabled.
type HTTPTransport struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPTransport builds a transport whose client times out after timeout.
func NewHTTPTransport(timeout time.Duration) (*HTTPTransport, error) {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: base,
			Timeout:   timeout,
		},
		maxBody: MaxBodySize,
	}, nil
}

// NewHTTPTransportWithClient wraps an existing client.
func NewHTTPTransportWithClient(hc *http.Client) *HTTPTransport {
	return &HTTPTransport{client: hc, maxBody: MaxBodySize}
}

// Issue performs the request and reads the body, up to MaxBodySize bytes.
func (t *HTTPTransport) Issue(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > t.maxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, t.maxBody)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}
