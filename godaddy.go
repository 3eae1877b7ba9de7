package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
)

// NewGoDaddy creates a Provider for the GoDaddy domains API.
//
// basePath is the API root, e.g. https://api.godaddy.com/v1 or https://api.ote-godaddy.com/v1.
// The returned provider manages the "@" A-record of a domain.
func NewGoDaddy(apiKey, apiSecret, basePath string) (*GoDaddy, error) {
	var missing []error
	if apiKey == "" {
		missing = append(missing, errors.New("api key cannot be empty"))
	}
	if apiSecret == "" {
		missing = append(missing, errors.New("api secret cannot be empty"))
	}
	if basePath == "" {
		missing = append(missing, errors.New("base path cannot be empty"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return &GoDaddy{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		basePath:   strings.TrimRight(basePath, "/"),
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     logr.Discard(),
	}, nil
}

// GoDaddy implements ddns.Provider.
type GoDaddy struct {
	apiKey     string
	apiSecret  string
	basePath   string
	httpClient *http.Client
	logger     logr.Logger
}

func (g *GoDaddy) SetLogger(logger logr.Logger) { g.logger = logger }

func (g *GoDaddy) SetHTTPClient(httpclient *http.Client) {
	if httpclient == nil {
		httpclient = cleanhttp.DefaultPooledClient()
	}
	g.httpClient = httpclient
}

// GetRecord returns the first "@" A-record for domain.
func (g *GoDaddy) GetRecord(ctx context.Context, domain string) (Record, error) {
	resp, err := g.do(ctx, http.MethodGet, domain, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrRecordLookupFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, fmt.Errorf("%w: error reading response body: %w", ErrRecordLookupFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Record{}, &ResponseError{Kind: ErrRecordLookupFailed, StatusCode: resp.StatusCode, Body: string(body)}
	}

	records, err := decodeRecords(body)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrResponseParseFailed, err)
	}
	g.logger.V(1).Info("found existing records", "domain", domain, "count", len(records))
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%w: no A record for %s", ErrRecordNotFound, domain)
	}
	return records[0], nil
}

// decodeRecords parses a GoDaddy record list.
// The body must be a JSON array and every element must carry a non-empty string "data".
func decodeRecords(body []byte) ([]Record, error) {
	var raw []struct {
		Data *string `json:"data"`
		TTL  int     `json:"ttl"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected a JSON array of records")
	}
	records := make([]Record, 0, len(raw))
	for i, r := range raw {
		if r.Data == nil || *r.Data == "" {
			return nil, fmt.Errorf("record %d has no data", i)
		}
		records = append(records, Record{Data: *r.Data, TTL: r.TTL})
	}
	return records, nil
}

// UpdateRecord replaces every "@" A-record for domain with addr.
func (g *GoDaddy) UpdateRecord(ctx context.Context, domain string, addr netip.Addr) error {
	body, err := json.Marshal([]Record{{Data: addr.String(), TTL: DefaultTTL}})
	if err != nil {
		return fmt.Errorf("%w: error encoding request: %w", ErrUpdateFailed, err)
	}

	g.logger.V(1).Info("replacing record", "domain", domain, "ip", addr)
	resp, err := g.do(ctx, http.MethodPut, domain, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			respBody = fmt.Appendf(respBody, " (error reading response body: %s)", err)
		}
		return &ResponseError{Kind: ErrUpdateRejected, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	// drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (g *GoDaddy) do(ctx context.Context, method, domain string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.recordURL(domain), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("sso-key %s:%s", g.apiKey, g.apiSecret))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

func (g *GoDaddy) recordURL(domain string) string {
	return fmt.Sprintf("%s/domains/%s/records/A/%%40", g.basePath, domain)
}
