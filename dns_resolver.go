package ddns

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"
	"github.com/miekg/dns"
)

// OpenDNSResolver returns a resolver which asks OpenDNS for the address it sees our queries coming from.
func OpenDNSResolver() *DNSResolver {
	return &DNSResolver{
		Server: "208.67.222.222:53", // resolver1.opendns.com
		Name:   "myip.opendns.com.",
	}
}

// DNSResolver implements ddns.Resolver by querying a DNS server that answers
// a special name with the querying client's address, such as myip.opendns.com.
type DNSResolver struct {
	Server string // host:port
	Name   string

	logger logr.Logger
}

func (r *DNSResolver) SetLogger(logger logr.Logger) { r.logger = logger }

func (r *DNSResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.Name), dns.TypeA)

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: dns query to %s failed: %w", ErrUnableToResolvePublicIP, r.Server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: %s answered %s", ErrUnableToResolvePublicIP, r.Server, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(a.A)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		r.logger.V(1).Info("dns server answered", "server", r.Server, "ip", ip)
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %s returned no A record for %s", ErrUnableToResolvePublicIP, r.Server, r.Name)
}
