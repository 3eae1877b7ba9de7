package ddns

import (
	"context"
	"net/netip"
)

// DefaultTTL is the TTL in seconds attached to every record write.
const DefaultTTL = 600

type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// Provider reads and replaces the A-record for a domain.
//
// Implementations must not retry and must not cache;
// retries happen on the next reconciliation cycle.
type Provider interface {
	GetRecord(ctx context.Context, domain string) (Record, error)
	UpdateRecord(ctx context.Context, domain string, addr netip.Addr) error
}

// Record is an A-record value as published by a provider.
type Record struct {
	Data string `json:"data"`
	TTL  int    `json:"ttl,omitempty"`
}
