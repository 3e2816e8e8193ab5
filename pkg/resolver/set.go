package resolver

import (
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Set holds one resolver per entity kind
type Set map[models.EntityKind]Resolver

// NewSet builds the standard clinic, provider and location resolvers
func NewSet(caller invoker.Caller, conns host.ConnectionSource, opts map[models.EntityKind]Options, logger ectologger.Logger) Set {
	return NewSetOf(
		NewClinicResolver(caller, conns, opts[models.EntityKindClinic], logger),
		NewProviderResolver(caller, conns, opts[models.EntityKindProvider], logger),
		NewLocationResolver(caller, conns, opts[models.EntityKindLocation], logger),
	)
}

// NewSetOf groups resolvers by their kind
func NewSetOf(resolvers ...Resolver) Set {
	set := make(Set, len(resolvers))
	for _, r := range resolvers {
		set[r.Kind()] = r
	}
	return set
}

// For returns the resolver of a kind
func (s Set) For(kind models.EntityKind) (Resolver, bool) {
	r, ok := s[kind]
	return r, ok
}
