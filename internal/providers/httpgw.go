package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emarren/vaultflow/pkg/schema"
)

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultHTTPTimeout     = 30 * time.Second
)

// NetGatewayConfig configures the default HTTP gateway.
type NetGatewayConfig struct {
	MaxResponseBody int64
	Timeout         time.Duration
}

// NetGateway implements HTTPGateway over net/http. The engine itself applies
// no timeouts; the gateway owns the per-request deadline.
type NetGateway struct {
	config NetGatewayConfig
	client *http.Client
}

// NewNetGateway creates a gateway with the given config. Zero values take
// defaults.
func NewNetGateway(cfg NetGatewayConfig) *NetGateway {
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &NetGateway{
		config: cfg,
		client: &http.Client{},
	}
}

func (g *NetGateway) Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error) {
	if req.URL == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "http: missing url")
	}
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "http: invalid url %q", req.URL)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, bodyReader)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "http: build request: %s", err.Error()).WithCause(err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" {
		if json.Valid([]byte(req.Body)) {
			httpReq.Header.Set("Content-Type", "application/json")
		} else {
			httpReq.Header.Set("Content-Type", "text/plain")
		}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "http: request failed: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxResponseBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "http: read response body: %s", err.Error()).WithCause(err)
	}

	out := &HTTPResponse{
		Status:  resp.StatusCode,
		Headers: make(map[string]string, len(resp.Header)),
		Body:    string(bodyBytes),
	}
	for k := range resp.Header {
		out.Headers[k] = resp.Header.Get(k)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && len(bodyBytes) > 0 {
		var parsed any
		if err := json.Unmarshal(bodyBytes, &parsed); err == nil {
			out.JSON = parsed
		}
	}
	return out, nil
}

var _ HTTPGateway = (*NetGateway)(nil)
