package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPackValidates(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDefaultPackHasChecklistPerCategory(t *testing.T) {
	pack := Default()
	for _, category := range pack.Categories {
		checklist, ok := pack.Checklist(category.Name)
		assert.True(t, ok, "category %s", category.Name)
		assert.NotEmpty(t, checklist.RequiredFields)
		assert.NotEmpty(t, pack.Playbook(category.Name), "category %s playbook", category.Name)
	}
}

func TestSaveDefaultThenLoadRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pack")
	require.NoError(t, SaveDefault(dir))

	pack, finalDir, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, finalDir)
	assert.Equal(t, Default().CategoryNames(), pack.CategoryNames())
	assert.Equal(t, 3, pack.Bot.RoundCap)
	assert.NotEmpty(t, pack.Playbook("bug"))
}

func TestLoadMissingDirFallsBackToDefault(t *testing.T) {
	pack, _, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, "github-actions[bot]", pack.Bot.Username)
}

func TestLoadRejectsInvalidPack(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "specpack.yaml"), []byte("version: 0\n"), 0o644)
	require.NoError(t, err)
	_, _, err = Load(dir)
	require.Error(t, err)
}

func TestValidateCatchesBrokenPatterns(t *testing.T) {
	pack := Default()
	pack.SecretPatterns = append(pack.SecretPatterns, "(")
	assert.Error(t, Validate(pack))

	pack = Default()
	checklist := pack.Checklists["bug"]
	checklist.RequiredFields = append(checklist.RequiredFields, FieldSpec{Name: "x", Pattern: "["})
	pack.Checklists["bug"] = checklist
	assert.Error(t, Validate(pack))
}

func TestRouteForIsCaseInsensitive(t *testing.T) {
	pack := Default()
	route := pack.Routing.RouteFor(" BUG ")
	require.NotNil(t, route)
	assert.Contains(t, route.Labels, "bug")
	assert.Nil(t, pack.Routing.RouteFor("unknown"))
}
