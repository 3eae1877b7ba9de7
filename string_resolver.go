package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns the IP in addr.
func FromString(addr string) (Resolver, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse IP: %w", ErrConfiguration, err)
	}
	return stringResolver{addr: ip}, nil
}

type stringResolver struct {
	addr netip.Addr
}

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	return s.addr, nil
}
