// Package credentials assembles the credential bundle a sync job needs:
// the remote connection plus every entity id resolved from stable codes,
// detected document entities and external mappings.
package credentials

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Detector infers an entity from a document name
type Detector interface {
	Detect(ctx context.Context, documentName string) (*models.DetectionResult, bool)
}

// Dependencies are the collaborators of an Assembler. Documents, Detector,
// Registry and Publisher are optional.
type Dependencies struct {
	Connections host.ConnectionSource
	Documents   host.DocumentSource
	Detector    Detector
	Resolvers   resolver.Set
	Registry    registry.Registry
	Publisher   events.Publisher
	Logger      ectologger.Logger
}

// Assembler builds credential bundles. It holds no per-call state and is safe for concurrent use.
type Assembler struct {
	deps  Dependencies
	now   func() time.Time
	newID func() string
}

func NewAssembler(deps Dependencies) *Assembler {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	return &Assembler{deps: deps, now: time.Now, newID: uuid.NewString}
}

// assembly is the working state of one Assemble call
type assembly struct {
	correlationID string
	systemName    string
	state         State
	conn          models.Connection
	codes         map[models.EntityKind]string
	resolved      map[models.EntityKind]string
	mappings      map[string]string
	detected      *models.DetectionResult
	log           ectologger.Logger
}

func (a *assembly) advance(state State) {
	a.log.WithField("state", string(state)).Debugf("Assembly %s -> %s", a.state, state)
	a.state = state
}

func (a *assembly) fail(err error) error {
	return &AssemblyError{Step: a.state, CorrelationID: a.correlationID, Err: err}
}

// Assemble resolves everything a sync job for systemName needs into one immutable bundle
func (s *Assembler) Assemble(ctx context.Context, systemName string, opts Options) (*models.CredentialBundle, error) {
	start := s.now()
	systemName = strings.TrimSpace(systemName)
	correlationID := s.newID()

	ctx = appctx.SetCorrelationID(ctx, correlationID)
	ctx = appctx.SetSystemName(ctx, systemName)

	ctx, span := tracing.StartSpan(ctx, "Assembler.Assemble")
	defer span.End()
	span.SetAttributes(
		attribute.String("system_name", systemName),
		attribute.String("correlation_id", correlationID),
	)

	run := &assembly{
		correlationID: correlationID,
		systemName:    systemName,
		state:         StateStart,
		codes:         map[models.EntityKind]string{},
		resolved:      map[models.EntityKind]string{},
		mappings:      map[string]string{},
		log:           s.deps.Logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)),
	}

	bundle, err := s.assemble(ctx, run, opts)
	if err != nil {
		tracing.RecordError(span, err, "credential assembly failed")
	}
	s.report(ctx, run, err, s.now().Sub(start))
	return bundle, err
}

func (s *Assembler) assemble(ctx context.Context, run *assembly, opts Options) (*models.CredentialBundle, error) {
	if err := validation.Var("system_name", run.systemName, "required"); err != nil {
		return nil, run.fail(err)
	}
	if err := s.collectExplicitCodes(run, opts); err != nil {
		return nil, run.fail(err)
	}
	for _, req := range opts.ExternalMappings {
		if err := validation.Struct(req); err != nil {
			return nil, run.fail(err)
		}
	}

	conn, ok := host.ConnectionFor(ctx, s.deps.Connections)
	if !ok {
		return nil, run.fail(fernerrors.NewConfigurationError("remote service connection is not configured (base URL and token are required)"))
	}
	run.conn = conn
	ctx = host.WithConnection(ctx, conn)
	run.advance(StateConnectionResolved)

	if opts.Detect {
		if err := s.detect(ctx, run, opts); err != nil {
			return nil, run.fail(err)
		}
		run.advance(StateDetectionDone)
	} else {
		run.advance(StateDetectionSkipped)
	}

	run.advance(StateCodesResolving)
	if err := s.resolveCodes(ctx, run, opts); err != nil {
		return nil, run.fail(err)
	}
	run.advance(StateCodesResolved)

	run.advance(StateMappingsResolving)
	s.resolveMappings(ctx, run, opts.ExternalMappings)

	bundle := models.NewCredentialBundle(models.BundleParams{
		Connection:       run.conn,
		SystemName:       run.systemName,
		ResolvedEntities: run.resolved,
		ExternalMappings: run.mappings,
		DetectedEntity:   run.detected,
		Timestamp:        s.now().UTC(),
		CorrelationID:    run.correlationID,
	})
	run.advance(StateAssembled)
	return bundle, nil
}

func (s *Assembler) collectExplicitCodes(run *assembly, opts Options) error {
	for kind, code := range opts.Codes {
		if !kind.Valid() {
			return fernerrors.NewValidationError("unknown entity kind %q", kind)
		}
		if code = strings.TrimSpace(code); code != "" {
			run.codes[kind] = code
		}
	}
	for _, kind := range opts.Required {
		if !kind.Valid() {
			return fernerrors.NewValidationError("unknown required entity kind %q", kind)
		}
	}
	return nil
}

// detect folds detected codes under explicit ones. A miss is not an error.
func (s *Assembler) detect(ctx context.Context, run *assembly, opts Options) error {
	if s.deps.Detector == nil {
		return fernerrors.NewConfigurationError("entity detection requested but no detection rules are loaded")
	}

	name := strings.TrimSpace(opts.DocumentName)
	if name == "" && s.deps.Documents != nil {
		documentName, err := s.deps.Documents.DocumentName(ctx)
		if err != nil {
			run.log.WithError(err).Warn("Could not read the current document name, continuing with explicit codes")
			return nil
		}
		name = strings.TrimSpace(documentName)
	}
	if name == "" {
		run.log.Warn("Entity detection requested without a document name, continuing with explicit codes")
		return nil
	}

	result, ok := s.deps.Detector.Detect(ctx, name)
	if !ok {
		return nil
	}
	run.detected = result

	if _, explicit := run.codes[result.EntityKind]; !explicit && result.EntityCode != "" {
		run.codes[result.EntityKind] = result.EntityCode
	}
	if _, explicit := run.codes[models.EntityKindClinic]; !explicit && result.PrimaryClinicCode != "" {
		run.codes[models.EntityKindClinic] = result.PrimaryClinicCode
	}
	return nil
}

func (s *Assembler) resolveCodes(ctx context.Context, run *assembly, opts Options) error {
	var callOpts []invoker.CallOption
	if opts.Refresh {
		callOpts = append(callOpts, invoker.SkipCacheRead())
	}

	for _, kind := range models.EntityKinds {
		required := ectolinq.Contains(opts.Required, kind)

		code, ok := run.codes[kind]
		if !ok {
			if required {
				missing := fernerrors.NewResolutionMissingError(kind, "")
				missing.Message = "required " + string(kind) + " code was neither supplied nor detected"
				return missing
			}
			continue
		}

		r, ok := s.deps.Resolvers.For(kind)
		if !ok {
			return fernerrors.NewConfigurationError("no resolver configured for %s codes", kind)
		}

		id, found, err := r.Resolve(ctx, code, callOpts...)
		if err != nil {
			return err
		}
		if !found {
			if required {
				return fernerrors.NewResolutionMissingError(kind, code)
			}
			run.log.WithFields(map[string]any{
				"entity_type": string(kind),
				"code":        code,
			}).Warnf("Optional %s code did not resolve, omitting it", kind)
			continue
		}
		run.resolved[kind] = id
	}
	return nil
}

// resolveMappings is best effort: failures and misses are logged and skipped
func (s *Assembler) resolveMappings(ctx context.Context, run *assembly, requests []MappingRequest) {
	if len(requests) == 0 {
		return
	}
	if s.deps.Registry == nil {
		run.log.Warnf("Skipping %d external mapping lookups: no mapping registry configured", len(requests))
		return
	}

	for _, req := range requests {
		log := run.log.WithFields(map[string]any{
			"external_id": req.ExternalID,
			"entity_type": string(req.EntityType),
		})

		id, found, err := s.deps.Registry.Lookup(ctx, run.systemName, req.ExternalID, req.EntityType)
		if err != nil {
			metrics.MappingLookupFailuresTotal.WithLabelValues(run.systemName, string(req.EntityType)).Inc()
			log.WithError(err).Warn("External mapping lookup failed, continuing without it")
			continue
		}
		if !found {
			log.Warn("No external mapping found")
			continue
		}

		run.mappings[req.ExternalID] = id
		if _, ok := run.resolved[req.EntityType]; !ok {
			run.resolved[req.EntityType] = id
		}
	}
}

// report emits the summary log, metrics and lifecycle event of an assembly
func (s *Assembler) report(ctx context.Context, run *assembly, err error, duration time.Duration) {
	status := "success"
	errorKind := ""
	step := run.state
	if err != nil {
		status = "failure"
		errorKind = string(fernerrors.KindOf(err))
		if errorKind == "" {
			errorKind = "unknown"
		}
		run.state = StateFailed
	}

	metrics.AssembliesTotal.WithLabelValues(run.systemName, status, errorKind).Inc()
	metrics.AssemblyDuration.WithLabelValues(run.systemName).Observe(duration.Seconds())

	fields := map[string]any{
		"status":            status,
		"state":             string(step),
		"duration_ms":       duration.Milliseconds(),
		"resolved_entities": len(run.resolved),
		"external_mappings": len(run.mappings),
		"detected":          run.detected != nil,
	}
	if err != nil {
		fields["error_kind"] = errorKind
		run.log.WithError(err).WithFields(fields).Errorf("Credential assembly for %s failed at %s", run.systemName, step)
	} else {
		run.log.WithFields(fields).Infof("Credential assembly for %s completed", run.systemName)
	}

	evt := &events.AssemblyEvent{
		Type:             events.TypeAssemblySucceeded,
		CorrelationID:    run.correlationID,
		SystemName:       run.systemName,
		State:            string(run.state),
		ResolvedEntities: make(map[string]string, len(run.resolved)),
		DurationMs:       duration.Milliseconds(),
		Timestamp:        s.now().UTC(),
	}
	for kind, id := range run.resolved {
		evt.ResolvedEntities[string(kind)] = id
	}
	if run.detected != nil {
		evt.DetectedEntity = run.detected.EntityCode
	}
	if err != nil {
		evt.Type = events.TypeAssemblyFailed
		evt.ErrorKind = errorKind
		evt.Error = err.Error()
	}

	if pubErr := s.deps.Publisher.PublishAssembly(ctx, evt); pubErr != nil {
		run.log.WithError(pubErr).Warn("Failed to publish assembly event")
	}
}
