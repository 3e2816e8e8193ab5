package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestStruct(t *testing.T) {
	valid := models.ExternalMapping{
		SystemName: "sheets",
		ExternalID: "ext-1",
		EntityType: models.EntityKindProvider,
		EntityID:   "prov-1",
	}
	assert.NoError(t, Struct(valid))

	invalid := valid
	invalid.EntityType = "building"
	invalid.EntityID = ""
	err := Struct(invalid)
	assert.True(t, fernerrors.IsKind(err, fernerrors.KindValidation))
	assert.Contains(t, err.Error(), "EntityType")
	assert.Contains(t, err.Error(), "oneof")
	assert.Contains(t, err.Error(), "EntityID")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("system_name", "sheets", "required"))

	err := Var("system_name", "", "required")
	assert.True(t, fernerrors.IsKind(err, fernerrors.KindValidation))
	assert.Contains(t, err.Error(), "system_name")
}
