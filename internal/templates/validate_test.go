package templates

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DuplicateIDs(t *testing.T) {
	c, err := LoadCatalog(os.DirFS("testdata/duplicate"), DefaultPack)
	require.NoError(t, err)

	errs := Validate(c)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateID, errs[0].Code)
	assert.Equal(t, "two.yaml", errs[0].Path)
	assert.Contains(t, errs[0].Message, `"same_flow"`)
	assert.Contains(t, errs[0].Message, "one.yaml")
}

func TestValidate_EmptyPack(t *testing.T) {
	errs := Validate(&Catalog{Pack: "ghost_v1"})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyPack, errs[0].Code)
	assert.Equal(t, `[T105] pack: no templates loaded for pack "ghost_v1"`, errs[0].Error())
}

func TestSourceValidate_ReportsLoadFailureAsIssue(t *testing.T) {
	errs, err := NewSource("testdata/missing").Validate(DefaultPack)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingField, errs[0].Code)
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Path: "a.yaml", Field: "id", Message: "bad", Code: ErrSchema, Line: 3}
	assert.Equal(t, "[T110] a.yaml:3: id: bad", e.Error())
}
