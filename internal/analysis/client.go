// Package analysis is the HTTP client for the remote natural-language
// classification provider.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

// AuthScheme selects how credentials are put on the request.
type AuthScheme string

// Supported schemes.
const (
	AuthBasic  AuthScheme = "basic"
	AuthBearer AuthScheme = "bearer"
	AuthHeader AuthScheme = "header"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Request is the JSON body sent to the provider.
type Request struct {
	Text     string                           `json:"text"`
	Language string                           `json:"language"`
	Features map[string]domain.FeatureOptions `json:"features"`
}

// RequestTransform rewrites a request before it is sent.
type RequestTransform func(*Request) *Request

// ResponseTransform rewrites a successful response before it is returned.
type ResponseTransform func(*domain.AnalysisResponse) *domain.AnalysisResponse

// Config configures a Client.
type Config struct {
	Endpoint   string
	AuthScheme AuthScheme
	// AuthHeader is the header name used by AuthHeader, e.g. "X-API-Key".
	AuthHeader string
	// Resolver supplies credentials; typically a Chain.
	Resolver   Resolver
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client sends analysis requests. It holds no per-call state and is safe
// for concurrent use once configured.
type Client struct {
	endpoint   string
	scheme     AuthScheme
	authHeader string
	resolver   Resolver
	http       *http.Client
	log        logger.Logger

	preRequest   []RequestTransform
	postResponse []ResponseTransform
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	scheme := cfg.AuthScheme
	if scheme == "" {
		scheme = AuthBasic
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = Chain{}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		scheme:     scheme,
		authHeader: cfg.AuthHeader,
		resolver:   resolver,
		http:       httpClient,
		log:        log,
	}
}

// UseRequestTransform appends a pre-request transform. Call during setup only.
func (c *Client) UseRequestTransform(t RequestTransform) {
	c.preRequest = append(c.preRequest, t)
}

// UseResponseTransform appends a post-response transform. Call during setup only.
func (c *Client) UseResponseTransform(t ResponseTransform) {
	c.postResponse = append(c.postResponse, t)
}

// HasCredentials reports whether the resolver chain yields any credential.
func (c *Client) HasCredentials(ctx context.Context) bool {
	return !ResolveCredentials(ctx, c.resolver).Empty()
}

// Analyze sends text for analysis. Exactly one HTTP request is made, bounded
// by opts.Timeout; nothing is retried here.
func (c *Client) Analyze(ctx context.Context, text string, opts domain.AnalysisOptions) (*domain.AnalysisResponse, error) {
	opts = opts.WithDefaults()
	if len(opts.Features) == 0 {
		return nil, fmt.Errorf("%w: no features requested", domain.ErrNotEnabled)
	}

	creds := ResolveCredentials(ctx, c.resolver)
	if creds.Empty() {
		return nil, domain.ErrCredentialsMissing
	}
	if c.scheme != AuthBasic && creds.Password == "" {
		return nil, fmt.Errorf("%w: %s scheme needs a password or API key", domain.ErrCredentialsMissing, c.scheme)
	}

	req := &Request{Text: text, Language: opts.Language, Features: opts.FeaturesPayload()}
	for _, t := range c.preRequest {
		if next := t(req); next != nil {
			req = next
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq, creds)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Err: err, Timeout: isTimeout(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read response: %w", err), Timeout: isTimeout(err)}
	}
	if len(body) > maxResponseBytes {
		return nil, &domain.InvalidResponseError{
			StatusCode: resp.StatusCode,
			Raw:        body[:maxResponseBytes],
			Err:        fmt.Errorf("response exceeds %d bytes", maxResponseBytes),
		}
	}

	c.log.Debug("Analysis response received",
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)),
		logger.Duration("latency", time.Since(start)),
	)

	result, err := decodeResponse(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	for _, t := range c.postResponse {
		if next := t(result); next != nil {
			result = next
		}
	}
	return result, nil
}

func (c *Client) authorize(req *http.Request, creds Credentials) {
	switch c.scheme {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+creds.Password)
	case AuthHeader:
		req.Header.Set(c.authHeader, creds.Password)
	default:
		token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
		req.Header.Set("Authorization", "Basic "+token)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decodeResponse maps a status and body onto a response or a typed error.
func decodeResponse(status int, body []byte) (*domain.AnalysisResponse, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &domain.InvalidResponseError{StatusCode: status, Raw: body, Err: err}
	}

	if raw, ok := envelope["error"]; ok {
		return nil, providerError(status, raw, envelope["code"])
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &domain.ProviderError{
			StatusCode: status,
			Code:       strconv.Itoa(status),
			Message:    http.StatusText(status),
		}
	}

	out := &domain.AnalysisResponse{
		Features: make(map[domain.FeatureName][]domain.ScoredLabel),
		Raw:      json.RawMessage(body),
	}
	if raw, ok := envelope["language"]; ok {
		_ = json.Unmarshal(raw, &out.Language)
	}
	for _, f := range domain.AllFeatures {
		raw, ok := envelope[f.WireKey()]
		if !ok {
			continue
		}
		var labels []domain.ScoredLabel
		if err := json.Unmarshal(raw, &labels); err != nil {
			return nil, &domain.InvalidResponseError{
				StatusCode: status,
				Raw:        body,
				Err:        fmt.Errorf("decode %s: %w", f.WireKey(), err),
			}
		}
		out.Features[f] = labels
	}
	return out, nil
}

// providerError accepts both {"error":"msg","code":400} and
// {"error":{"code":"x","message":"msg"}}.
func providerError(status int, rawErr, rawCode json.RawMessage) *domain.ProviderError {
	pe := &domain.ProviderError{StatusCode: status, Code: jsonScalar(rawCode)}

	var nested struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(rawErr, &nested); err == nil && (nested.Message != "" || len(nested.Code) > 0) {
		pe.Message = nested.Message
		if c := jsonScalar(nested.Code); c != "" {
			pe.Code = c
		}
	} else {
		pe.Message = jsonScalar(rawErr)
	}

	if pe.Code == "" {
		pe.Code = strconv.Itoa(status)
	}
	return pe
}

// jsonScalar renders a JSON string or number as plain text.
func jsonScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
