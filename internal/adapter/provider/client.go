package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient abstracts *http.Client so adapters can be tested without a
// network.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// apiClient is the shared request plumbing for provider adapters: JSON
// encoding, bounded timeouts and outcome classification.
type apiClient struct {
	http    HTTPClient
	baseURL string
	apiKey  string
	timeout time.Duration
	log     zerolog.Logger
}

func newAPIClient(httpClient HTTPClient, baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *apiClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &apiClient{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		log:     log,
	}
}

// doJSON sends a JSON request and decodes a JSON response. A timeout or a
// lost response wraps ports.ErrOutcomeUnknown: the call may have settled
// upstream, so the caller must reconcile rather than assume failure.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(data, 256))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &apiError{status: resp.StatusCode, body: truncate(data, 256)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// apiError is a provider 4xx: a definitive business rejection, never a
// lost outcome.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider rejected request (%d): %s", e.status, e.body)
}

// classifyTransport maps transport failures where the response was lost
// onto ports.ErrOutcomeUnknown.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ports.ErrOutcomeUnknown, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Connection refused and DNS failures happen before the request is
	// sent; the charge cannot have settled.
	return fmt.Errorf("provider unreachable: %w", err)
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}

// verifyHMAC checks a hex-encoded HMAC-SHA256 signature over the payload.
func verifyHMAC(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
