package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// FirstOf returns a resolver that tries each resolver in order
// and returns the first address found.
// It fails only if every resolver fails.
func FirstOf(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context) (netip.Addr, error) {
		var errs []error
		for i, r := range resolvers {
			addr, err := r.Resolve(ctx)
			if err == nil && addr.IsValid() {
				return addr, nil
			}
			if err == nil {
				err = errors.New("no address")
			}
			errs = append(errs, fmt.Errorf("resolver %d: %w", i, err))
			if ctx.Err() != nil {
				break
			}
		}
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnableToResolvePublicIP, errors.Join(errs...))
	})
}
