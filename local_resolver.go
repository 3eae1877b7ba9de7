package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns an IP address reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used.
//
// Only global unicast addresses are considered, and IPv4 addresses are preferred.
// This is only useful for hosts which hold their public address directly, e.g. a router.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, err := r.addrs()
	var v6 netip.Addr
	for _, addr := range addrs {
		ip, perr := netip.ParsePrefix(addr.String())
		if perr != nil {
			err = errors.Join(err, fmt.Errorf("error parsing local ip %s: %w", addr.String(), perr))
			continue
		}
		a := ip.Addr().Unmap()
		if !a.IsGlobalUnicast() {
			continue
		}
		if a.Is4() {
			return a, nil
		}
		if !v6.IsValid() {
			v6 = a
		}
	}
	if v6.IsValid() {
		return v6, nil
	}
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnableToResolvePublicIP, err)
	}
	return netip.Addr{}, fmt.Errorf("%w: no global unicast address on interfaces %v", ErrUnableToResolvePublicIP, r.ifaces)
}

func (r interfaceResolver) addrs() ([]net.Addr, error) {
	if len(r.ifaces) == 0 {
		adds, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interfaces: %w", err)
		}
		return adds, nil
	}

	var adds []net.Addr
	var errs []error
	for _, ifs := range r.ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		adds = append(adds, a...)
	}
	return adds, errors.Join(errs...)
}
