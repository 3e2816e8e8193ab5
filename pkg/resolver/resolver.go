// Package resolver translates stable codes into current entity ids.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
)

const codeParam = "p_code"

// Resolver resolves stable codes of one entity kind
type Resolver interface {
	Kind() models.EntityKind
	// Resolve returns the current id for code. found is false when the code is unknown.
	Resolve(ctx context.Context, code string, opts ...invoker.CallOption) (id string, found bool, err error)
}

// Options configures a code resolver
type Options struct {
	// Function overrides the remote function name
	Function string
	// Extract is a JMESPath expression selecting the id from object results
	Extract string
}

type codeResolver struct {
	kind     models.EntityKind
	function string
	extract  string
	caller   invoker.Caller
	conns    host.ConnectionSource
	logger   ectologger.Logger
}

func newCodeResolver(kind models.EntityKind, defaultFunction string, caller invoker.Caller, conns host.ConnectionSource, opts Options, logger ectologger.Logger) codeResolver {
	function := opts.Function
	if function == "" {
		function = defaultFunction
	}
	return codeResolver{
		kind:     kind,
		function: function,
		extract:  opts.Extract,
		caller:   caller,
		conns:    conns,
		logger:   logger,
	}
}

func (r codeResolver) resolve(ctx context.Context, code string, opts ...invoker.CallOption) (string, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false, fernerrors.NewValidationError("%s code is required", r.kind)
	}

	conn, ok := host.ConnectionFor(ctx, r.conns)
	if !ok {
		return "", false, fernerrors.NewConfigurationError("remote service connection is not configured (base URL and token are required)")
	}

	if r.extract != "" {
		opts = append([]invoker.CallOption{invoker.Extract(r.extract)}, opts...)
	}

	result, err := r.caller.Call(ctx, r.function, map[string]any{codeParam: code}, conn, opts...)
	if err != nil {
		return "", false, annotate(err, r.kind, code)
	}

	id, found := result.ID()
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": string(r.kind),
		"code":        code,
		"from_cache":  result.FromCache,
	})
	if !found {
		log.Debugf("No %s found for code", r.kind)
		return "", false, nil
	}
	log.WithField("entity_id", id).Debugf("Resolved %s code", r.kind)
	return id, true, nil
}

// annotate records which code failed on a classified error
func annotate(err error, kind models.EntityKind, code string) error {
	if classified, ok := fernerrors.As(err); ok {
		if classified.EntityKind == "" {
			classified.EntityKind = kind
			classified.Code = code
		}
		return err
	}
	return fmt.Errorf("resolving %s code %q: %w", kind, code, err)
}

// ClinicResolver resolves clinic codes
type ClinicResolver struct{ codeResolver }

func NewClinicResolver(caller invoker.Caller, conns host.ConnectionSource, opts Options, logger ectologger.Logger) *ClinicResolver {
	return &ClinicResolver{newCodeResolver(models.EntityKindClinic, "resolve_clinic_by_code", caller, conns, opts, logger)}
}

func (r *ClinicResolver) Kind() models.EntityKind { return models.EntityKindClinic }

func (r *ClinicResolver) Resolve(ctx context.Context, code string, opts ...invoker.CallOption) (string, bool, error) {
	return r.resolve(ctx, code, opts...)
}

// ProviderResolver resolves provider codes
type ProviderResolver struct{ codeResolver }

func NewProviderResolver(caller invoker.Caller, conns host.ConnectionSource, opts Options, logger ectologger.Logger) *ProviderResolver {
	return &ProviderResolver{newCodeResolver(models.EntityKindProvider, "resolve_provider_by_code", caller, conns, opts, logger)}
}

func (r *ProviderResolver) Kind() models.EntityKind { return models.EntityKindProvider }

func (r *ProviderResolver) Resolve(ctx context.Context, code string, opts ...invoker.CallOption) (string, bool, error) {
	return r.resolve(ctx, code, opts...)
}

// LocationResolver resolves location codes
type LocationResolver struct{ codeResolver }

func NewLocationResolver(caller invoker.Caller, conns host.ConnectionSource, opts Options, logger ectologger.Logger) *LocationResolver {
	return &LocationResolver{newCodeResolver(models.EntityKindLocation, "resolve_location_by_code", caller, conns, opts, logger)}
}

func (r *LocationResolver) Kind() models.EntityKind { return models.EntityKindLocation }

func (r *LocationResolver) Resolve(ctx context.Context, code string, opts ...invoker.CallOption) (string, bool, error) {
	return r.resolve(ctx, code, opts...)
}
