package credentials

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// State is a step of the assembly state machine
type State string

const (
	StateStart              State = "START"
	StateConnectionResolved State = "CONNECTION_RESOLVED"
	StateDetectionDone      State = "DETECTION_DONE"
	StateDetectionSkipped   State = "DETECTION_SKIPPED"
	StateCodesResolving     State = "CODES_RESOLVING"
	StateCodesResolved      State = "CODES_RESOLVED"
	StateMappingsResolving  State = "MAPPINGS_RESOLVING"
	StateAssembled          State = "ASSEMBLED"
	StateFailed             State = "FAILED"
)

// MappingRequest asks for the entity bound to an external id
type MappingRequest struct {
	ExternalID string            `json:"external_id" validate:"required"`
	EntityType models.EntityKind `json:"entity_type" validate:"required,oneof=clinic provider location"`
}

// Options controls a single assembly
type Options struct {
	// Codes are explicitly known stable codes. They take precedence over detected codes.
	Codes map[models.EntityKind]string
	// Required kinds fail the assembly when their code does not resolve
	Required []models.EntityKind
	// Detect runs entity detection against the document name
	Detect bool
	// DocumentName overrides the host document source for detection
	DocumentName string
	// ExternalMappings are looked up in the mapping registry. Failures never fail the assembly.
	ExternalMappings []MappingRequest
	// Refresh bypasses cached resolutions. Fresh results are still cached.
	Refresh bool
}

// AssemblyError reports the step at which an assembly failed
type AssemblyError struct {
	Step          State
	CorrelationID string
	Err           error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("credential assembly failed at %s (correlation id %s): %v", e.Step, e.CorrelationID, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// ToHTTPError converts the failure for the HTTP surface
func (e *AssemblyError) ToHTTPError() *httperror.HTTPError {
	var herr *httperror.HTTPError
	if classified, ok := fernerrors.As(e.Err); ok {
		herr = classified.ToHTTPError()
	} else {
		herr = httperror.NewHTTPError(http.StatusInternalServerError, e.Error())
	}
	return herr.
		AddMetaValue("step", string(e.Step)).
		AddMetaValue("correlation_id", e.CorrelationID)
}
