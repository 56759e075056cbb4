package spoolman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrBaseURLRequired = errors.New("spoolman: base url required")

// LookupOutcome classifies the result of a spool lookup.
type LookupOutcome int

const (
	LookupFound LookupOutcome = iota
	LookupNotFound
	LookupFailed
)

// Failure carries diagnostic detail for a failed lookup. ConnectFailure
// distinguishes "could not reach the server" from HTTP-level failures.
type Failure struct {
	ConnectFailure bool
	Status         int
	Detail         string
}

// Message renders the human-readable diagnostic for this failure.
func (f Failure) Message() string {
	if f.ConnectFailure {
		return fmt.Sprintf("Failed to connect to server: %s", f.Detail)
	}
	return fmt.Sprintf("Unknown error: %s", f.Detail)
}

// Lookup is the three-way result of a spool lookup: exactly one of
// Record (Found) or Failure (Failed) is populated; NotFound carries
// neither.
type Lookup struct {
	Outcome LookupOutcome
	Record  *Record
	Failure Failure
}

// ClientConfig configures the inventory HTTP client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns inventory client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout: 10 * time.Second,
	}
}

// Client queries the spool inventory service over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient constructs an inventory client for one service base URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultClientConfig().RequestTimeout
	}
	return &Client{
		baseURL: base,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

// GetSpool resolves one spool record by ID. All failure modes are folded
// into the returned Lookup; the method itself never returns an error so
// callers branch on Outcome exhaustively.
func (c *Client) GetSpool(ctx context.Context, id int64) Lookup {
	endpoint := fmt.Sprintf("%s/v1/spool/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failedLookup(false, 0, err.Error())
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return failedLookup(isConnectFailure(err), 0, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		rec, err := DecodeRecord(resp.Body)
		if err != nil {
			return failedLookup(false, resp.StatusCode, err.Error())
		}
		return Lookup{Outcome: LookupFound, Record: rec}
	case http.StatusNotFound:
		return Lookup{Outcome: LookupNotFound}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return failedLookup(false, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func failedLookup(connect bool, status int, detail string) Lookup {
	return Lookup{
		Outcome: LookupFailed,
		Failure: Failure{ConnectFailure: connect, Status: status, Detail: detail},
	}
}

// isConnectFailure reports whether err stems from failing to reach the
// server rather than from the exchange itself.
func isConnectFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
