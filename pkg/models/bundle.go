package models

import (
	"encoding/json"
	"maps"
	"time"
)

const redactedToken = "[redacted]"

// CredentialBundle is the fully resolved output of an assembly.
// It is built once per call and cannot be modified after it is returned.
type CredentialBundle struct {
	baseURL          string
	authToken        string
	systemName       string
	resolvedEntities map[EntityKind]string
	externalMappings map[string]string
	detectedEntity   *DetectionResult
	timestamp        time.Time
	correlationID    string
}

// BundleParams holds the values used to build a CredentialBundle
type BundleParams struct {
	Connection       Connection
	SystemName       string
	ResolvedEntities map[EntityKind]string
	ExternalMappings map[string]string
	DetectedEntity   *DetectionResult
	Timestamp        time.Time
	CorrelationID    string
}

// NewCredentialBundle copies the params into a new bundle
func NewCredentialBundle(p BundleParams) *CredentialBundle {
	b := &CredentialBundle{
		baseURL:          p.Connection.BaseURL,
		authToken:        p.Connection.Token,
		systemName:       p.SystemName,
		resolvedEntities: make(map[EntityKind]string, len(p.ResolvedEntities)),
		externalMappings: make(map[string]string, len(p.ExternalMappings)),
		timestamp:        p.Timestamp,
		correlationID:    p.CorrelationID,
	}
	maps.Copy(b.resolvedEntities, p.ResolvedEntities)
	maps.Copy(b.externalMappings, p.ExternalMappings)
	if p.DetectedEntity != nil {
		detected := *p.DetectedEntity
		b.detectedEntity = &detected
	}
	return b
}

func (b *CredentialBundle) BaseURL() string { return b.baseURL }
func (b *CredentialBundle) AuthToken() string { return b.authToken }
func (b *CredentialBundle) SystemName() string { return b.systemName }
func (b *CredentialBundle) Timestamp() time.Time { return b.timestamp }
func (b *CredentialBundle) CorrelationID() string { return b.correlationID }

// Entity returns the resolved surrogate id for a kind
func (b *CredentialBundle) Entity(kind EntityKind) (string, bool) {
	id, ok := b.resolvedEntities[kind]
	return id, ok
}

// ResolvedEntities returns a copy of the resolved surrogate ids keyed by kind
func (b *CredentialBundle) ResolvedEntities() map[EntityKind]string {
	return maps.Clone(b.resolvedEntities)
}

// ExternalMappings returns a copy of the resolved external ids (external id -> entity id)
func (b *CredentialBundle) ExternalMappings() map[string]string {
	return maps.Clone(b.externalMappings)
}

// DetectedEntity returns a copy of the detection result, if detection matched
func (b *CredentialBundle) DetectedEntity() (DetectionResult, bool) {
	if b.detectedEntity == nil {
		return DetectionResult{}, false
	}
	return *b.detectedEntity, true
}

type bundleJSON struct {
	BaseURL          string                `json:"base_url"`
	AuthToken        string                `json:"auth_token"`
	SystemName       string                `json:"system_name"`
	ResolvedEntities map[EntityKind]string `json:"resolved_entities"`
	ExternalMappings map[string]string     `json:"external_mappings,omitempty"`
	DetectedEntity   *DetectionResult      `json:"detected_entity,omitempty"`
	Timestamp        time.Time             `json:"timestamp"`
	CorrelationID    string                `json:"correlation_id"`
}

func (b *CredentialBundle) toJSON(revealToken bool) bundleJSON {
	token := redactedToken
	if revealToken {
		token = b.authToken
	}
	return bundleJSON{
		BaseURL:          b.baseURL,
		AuthToken:        token,
		SystemName:       b.systemName,
		ResolvedEntities: b.resolvedEntities,
		ExternalMappings: b.externalMappings,
		DetectedEntity:   b.detectedEntity,
		Timestamp:        b.timestamp,
		CorrelationID:    b.correlationID,
	}
}

// MarshalJSON encodes the bundle with the auth token redacted
func (b *CredentialBundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.toJSON(false))
}

// MarshalJSONWithToken encodes the bundle including the auth token
func (b *CredentialBundle) MarshalJSONWithToken() ([]byte, error) {
	return json.Marshal(b.toJSON(true))
}
