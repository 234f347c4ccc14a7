package templates

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_FiltersByPack(t *testing.T) {
	c, err := LoadCatalog(os.DirFS("testdata/valid"), DefaultPack)
	require.NoError(t, err)
	assert.Equal(t, DefaultPack, c.Pack)
	assert.Equal(t, []string{"alpha_flow", "beta_flow"}, c.IDs())

	alpha := c.Templates[0]
	assert.Equal(t, DefaultPack, alpha.Pack, "missing pack defaults")
	assert.Equal(t, "alpha.yaml", alpha.Path)
	assert.Equal(t, 20, alpha.OrderHint)
	assert.Equal(t, []TriggerRule{{Section: "methodology", Keywords: []string{"Pipeline"}}}, alpha.TriggerRules)
	assert.Equal(t, "left_to_right", alpha.ElementBlueprint["layout"])

	other, err := LoadCatalog(os.DirFS("testdata/valid"), "other_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma_flow"}, other.IDs())
}

func TestLoadCatalog_EmptyPackNameUsesDefault(t *testing.T) {
	c, err := LoadCatalog(os.DirFS("testdata/valid"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPack, c.Pack)
}

func TestLoadCatalog_MissingRequiredFields(t *testing.T) {
	_, err := LoadCatalog(os.DirFS("testdata/missing"), DefaultPack)
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ErrMissingField, ve.Code)
	assert.Equal(t, "incomplete.yaml", ve.Path)
	assert.Contains(t, ve.Field, "caption_style")
	assert.Contains(t, ve.Field, "trigger_rules")
	assert.NotContains(t, ve.Field, "title")
}

func TestLoadCatalog_NotMapping(t *testing.T) {
	_, err := LoadCatalog(os.DirFS("testdata/broken"), DefaultPack)
	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ErrDecode, ve.Code, "bad_types.yaml sorts first and fails to decode order_hint")
}

func TestBuiltinCatalog(t *testing.T) {
	c, err := LoadCatalog(Builtin(), DefaultPack)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"methodology_pipeline",
		"system_architecture",
		"results_comparison",
		"end_to_end_overview",
	}, c.IDs())
	assert.Empty(t, Validate(c))

	issues, err := Lint(Builtin(), "")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSource(t *testing.T) {
	ids, err := NewSource("testdata/valid").TemplateIDs(DefaultPack)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_flow", "beta_flow"}, ids)

	builtin := NewSource("")
	assert.Equal(t, "<builtin>", builtin.Name())
	ids, err = builtin.TemplateIDs("minimal_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"minimal_overview"}, ids)

	_, err = NewSource(filepath.Join(t.TempDir(), "nope")).Catalog(DefaultPack)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
