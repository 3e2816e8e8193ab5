package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/credentials"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Assembler builds credential bundles
type Assembler interface {
	Assemble(ctx context.Context, systemName string, opts credentials.Options) (*models.CredentialBundle, error)
}

// Detector matches document names and header rows
type Detector interface {
	Detect(ctx context.Context, documentName string) (*models.DetectionResult, bool)
	DetectColumnGroups(headers []string) map[string][]int
}

// Handlers serves the resolution API
type Handlers struct {
	assembler Assembler
	detector  Detector
	registry  registry.Registry
	resolvers resolver.Set
	logger    ectologger.Logger
}

// NewHandlers creates the API handlers. detector may be nil when no rules are loaded.
func NewHandlers(assembler Assembler, detector Detector, reg registry.Registry, resolvers resolver.Set, logger ectologger.Logger) *Handlers {
	return &Handlers{
		assembler: assembler,
		detector:  detector,
		registry:  reg,
		resolvers: resolvers,
		logger:    logger,
	}
}

// BindRequest binds the request body into T and validates it
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if err := validation.Struct(v); err != nil {
		return v, err
	}

	return v, nil
}

func parseKind(value string) (models.EntityKind, error) {
	kind, err := models.ParseEntityKind(value)
	if err != nil {
		return "", httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return kind, nil
}

func queryBool(c echo.Context, name string) bool {
	value, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && value
}

type AssembleRequest struct {
	Codes            map[string]string            `json:"codes"`
	Required         []string                     `json:"required"`
	Detect           bool                         `json:"detect"`
	DocumentName     string                       `json:"document_name"`
	ExternalMappings []credentials.MappingRequest `json:"external_mappings" validate:"dive"`
	Refresh          bool                         `json:"refresh"`
}

func (r AssembleRequest) options() (credentials.Options, error) {
	opts := credentials.Options{
		Codes:            make(map[models.EntityKind]string, len(r.Codes)),
		Detect:           r.Detect,
		DocumentName:     r.DocumentName,
		ExternalMappings: r.ExternalMappings,
		Refresh:          r.Refresh,
	}
	for name, code := range r.Codes {
		kind, err := parseKind(name)
		if err != nil {
			return opts, err
		}
		opts.Codes[kind] = code
	}
	for _, name := range r.Required {
		kind, err := parseKind(name)
		if err != nil {
			return opts, err
		}
		opts.Required = append(opts.Required, kind)
	}
	return opts, nil
}

// Assemble builds a credential bundle for a system
// POST /api/v1/credentials/:system
func (h *Handlers) Assemble(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.Assemble")
	defer span.End()

	req, err := BindRequest[AssembleRequest](c)
	if err != nil {
		return err
	}
	opts, err := req.options()
	if err != nil {
		return err
	}

	bundle, err := h.assembler.Assemble(ctx, c.Param("system"), opts)
	if err != nil {
		return err
	}

	var body []byte
	if queryBool(c, "reveal_token") {
		body, err = bundle.MarshalJSONWithToken()
	} else {
		body, err = bundle.MarshalJSON()
	}
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, body)
}

type DetectRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}

type DetectResponse struct {
	Detected bool                    `json:"detected"`
	Result   *models.DetectionResult `json:"result,omitempty"`
}

func (h *Handlers) requireDetector() error {
	if h.detector == nil {
		return httperror.NewHTTPError(http.StatusNotImplemented, "entity detection is not configured")
	}
	return nil
}

// Detect matches a document name against the detection rules
// POST /api/v1/detect
func (h *Handlers) Detect(c echo.Context) error {
	if err := h.requireDetector(); err != nil {
		return err
	}
	req, err := BindRequest[DetectRequest](c)
	if err != nil {
		return err
	}

	result, ok := h.detector.Detect(c.Request().Context(), req.DocumentName)
	return c.JSON(http.StatusOK, DetectResponse{Detected: ok, Result: result})
}

type ClassifyColumnsRequest struct {
	Headers []string `json:"headers" validate:"required"`
}

// ClassifyColumns assigns header indices to column groups
// POST /api/v1/columns/classify
func (h *Handlers) ClassifyColumns(c echo.Context) error {
	if err := h.requireDetector(); err != nil {
		return err
	}
	req, err := BindRequest[ClassifyColumnsRequest](c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"groups": h.detector.DetectColumnGroups(req.Headers),
	})
}

// ListMappings returns every mapping of a system
// GET /api/v1/mappings/:system
func (h *Handlers) ListMappings(c echo.Context) error {
	mappings, err := h.registry.List(c.Request().Context(), c.Param("system"))
	if err != nil {
		return err
	}
	if mappings == nil {
		mappings = []models.ExternalMapping{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"mappings": mappings,
		"count":    len(mappings),
	})
}

// LookupMapping returns the entity bound to an external id
// GET /api/v1/mappings/:system/:entity_type/:external_id
func (h *Handlers) LookupMapping(c echo.Context) error {
	kind, err := parseKind(c.Param("entity_type"))
	if err != nil {
		return err
	}

	id, found, err := h.registry.Lookup(c.Request().Context(), c.Param("system"), c.Param("external_id"), kind)
	if err != nil {
		return err
	}
	if !found {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "no %s mapping for external id '%s'", kind, c.Param("external_id"))
	}
	return c.JSON(http.StatusOK, map[string]string{"entity_id": id})
}

// UpsertMapping creates or replaces a mapping
// PUT /api/v1/mappings
func (h *Handlers) UpsertMapping(c echo.Context) error {
	mapping, err := BindRequest[models.ExternalMapping](c)
	if err != nil {
		return err
	}
	if err := h.registry.Upsert(c.Request().Context(), mapping); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapping)
}

// Resolve translates one stable code
// GET /api/v1/resolve/:kind/:code
func (h *Handlers) Resolve(c echo.Context) error {
	kind, err := parseKind(c.Param("kind"))
	if err != nil {
		return err
	}
	r, ok := h.resolvers.For(kind)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotImplemented, "no resolver configured for %s codes", kind)
	}

	opts := ectolinq.Ternary(queryBool(c, "refresh"), []invoker.CallOption{invoker.SkipCacheRead()}, nil)
	code := c.Param("code")
	id, found, err := r.Resolve(c.Request().Context(), code, opts...)
	if err != nil {
		return err
	}
	if !found {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s code '%s' did not resolve", kind, code)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"entity_type": string(kind),
		"code":        code,
		"entity_id":   id,
	})
}
