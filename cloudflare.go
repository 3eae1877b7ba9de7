package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
)

func newCloudflareProvider(token, zoneID string, options ...cloudflare.Option) (cf *cloudflareProvider, err error) {
	// retries belong to the reconciliation cycle, not the provider
	options = append([]cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}, options...)

	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating cloudflare api client: %w", ErrConfiguration, err)
	}
	cf.zoneID = zoneID
	cf.logger = logr.Discard()
	return cf, nil
}

// cloudflareProvider implements ddns.Provider.
//
// It should be constructed using newCloudflareProvider.
type cloudflareProvider struct {
	api    *cloudflare.API
	logger logr.Logger
	zoneID string // looked up from the domain when empty
}

func (cf *cloudflareProvider) SetLogger(logger logr.Logger) { cf.logger = logger }

func (cf *cloudflareProvider) SetHTTPClient(httpclient *http.Client) {
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	cloudflare.HTTPClient(httpclient)(cf.api)
}

func (cf *cloudflareProvider) GetRecord(ctx context.Context, domain string) (Record, error) {
	zid, err := cf.zone(ctx, domain)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrRecordLookupFailed, err)
	}
	r, err := cf.findRecord(ctx, zid, domain)
	if err != nil {
		return Record{}, err
	}
	return Record{Data: r.Content, TTL: r.TTL}, nil
}

func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, domain string, addr netip.Addr) error {
	zid, err := cf.zone(ctx, domain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	r, err := cf.findRecord(ctx, zid, domain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	cf.logger.V(1).Info("updating record", "id", r.ID, "domain", domain, "ip", addr)
	_, err = cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.UpdateDNSRecordParams{
		ID:      r.ID,
		Type:    "A",
		Name:    domain,
		Content: addr.String(),
		TTL:     DefaultTTL,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	}
	return nil
}

func (cf *cloudflareProvider) findRecord(ctx context.Context, zid, domain string) (cloudflare.DNSRecord, error) {
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
		Type:       "A",
		Name:       domain,
		ResultInfo: cloudflare.ResultInfo{Page: 1, PerPage: 100},
	})
	if err != nil {
		return cloudflare.DNSRecord{}, fmt.Errorf("%w: error listing records: %w", ErrRecordLookupFailed, err)
	}
	cf.logger.V(1).Info("found existing records", "zone", zid, "count", len(records))
	if len(records) == 0 {
		return cloudflare.DNSRecord{}, fmt.Errorf("%w: no A record for %s", ErrRecordNotFound, domain)
	}
	return records[0], nil
}

func (cf *cloudflareProvider) zone(ctx context.Context, domain string) (string, error) {
	if cf.zoneID != "" {
		return cf.zoneID, nil
	}
	zid, err := cf.getZoneIDFromDomain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("unable to get zone ID for %s: %w", domain, err)
	}
	cf.logger.V(1).Info("got zone ID", "zone", zid)
	return zid, nil
}

func (cf *cloudflareProvider) getZoneIDFromDomain(ctx context.Context, domain string) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}

	max := 0
	for _, z := range zones {
		if (domain == z.Name || strings.HasSuffix(domain, "."+z.Name)) && len(z.Name) > max {
			max, zid = len(z.Name), z.ID
		}
	}
	if max == 0 {
		return "", errors.New("unable to find a zone matching \"" + domain + "\"")
	}
	return zid, nil
}
