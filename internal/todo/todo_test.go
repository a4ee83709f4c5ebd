package todo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/shared/types"
)

func TestEnumValidity(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("done").Valid())
	assert.False(t, Status("").Valid())

	for _, p := range Priorities {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Priority("urgent").Valid())
}

func TestFieldsValidate(t *testing.T) {
	assert.NoError(t, Fields{Title: "ok", Status: StatusError, Priority: PriorityMedium}.Validate())

	err := Fields{Title: "", Status: StatusPlanned, Priority: "none"}.Validate()
	var ve *types.ValidationErrors
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 2)
	assert.Equal(t, "title", ve.Errors[0].Field)
	assert.Equal(t, "priority", ve.Errors[1].Field)
}

func TestPatchPresence(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.NoError(t, Patch{}.Validate())
	assert.Empty(t, Patch{}.Doc())

	empty := ""
	assert.Error(t, Patch{Title: &empty}.Validate())

	// an empty description is a legitimate value, not an absent one
	desc := ""
	var noTags []string
	p := Patch{Description: &desc, Tags: &noTags}
	assert.False(t, p.IsEmpty())
	assert.Equal(t, map[string]interface{}{"description": "", "tags": []string{}}, p.Doc())
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{ID: "42"}
	assert.Equal(t, "todo 42 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
