package models

import (
	"fmt"
	"strings"
)

// EntityKind identifies the kind of business entity a stable code refers to
type EntityKind string

const (
	EntityKindClinic   EntityKind = "clinic"
	EntityKindProvider EntityKind = "provider"
	EntityKindLocation EntityKind = "location"
)

// EntityKinds lists every supported kind in resolution order
var EntityKinds = []EntityKind{EntityKindClinic, EntityKindProvider, EntityKindLocation}

// ParseEntityKind parses a kind name, ignoring case and surrounding whitespace
func ParseEntityKind(s string) (EntityKind, error) {
	kind := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entity kind %q (expected clinic, provider or location)", s)
	}
	return kind, nil
}

// Valid reports whether the kind is one of the supported kinds
func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindClinic, EntityKindProvider, EntityKindLocation:
		return true
	default:
		return false
	}
}

func (k EntityKind) String() string {
	return string(k)
}

// StableCode is a human-assigned identifier that survives reseeds of the remote store
type StableCode string

// EntityReference is the current surrogate identifier of an entity in the remote store.
// It is only ever produced by resolution and is never persisted.
type EntityReference struct {
	Kind        EntityKind `json:"entity_type"`
	SurrogateID string     `json:"surrogate_id"`
}

// Connection holds the remote data service connection parameters
type Connection struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"-"`
}

// Empty reports whether either connection parameter is missing
func (c Connection) Empty() bool {
	return strings.TrimSpace(c.BaseURL) == "" || strings.TrimSpace(c.Token) == ""
}
