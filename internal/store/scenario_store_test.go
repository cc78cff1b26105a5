package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ScenarioStore {
	t.Helper()
	ss, err := NewScenarioStore(filepath.Join(t.TempDir(), "scenarios.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })
	return ss
}

func TestScenarioStore_SaveAndFetch(t *testing.T) {
	ss := newTestStore(t)

	require.NoError(t, ss.SaveScenario("normal", `[0, 800, 1600]`))

	content, err := ss.ScenarioContent("normal")
	require.NoError(t, err)
	assert.Equal(t, `[0, 800, 1600]`, content)
}

func TestScenarioStore_FetchMissing(t *testing.T) {
	ss := newTestStore(t)

	_, err := ss.ScenarioContent("ghost")
	assert.Error(t, err)
}

func TestScenarioStore_SaveReplacesByName(t *testing.T) {
	ss := newTestStore(t)

	require.NoError(t, ss.SaveScenario("normal", `[0, 800]`))
	require.NoError(t, ss.SaveScenario("normal", `[0, 900]`))

	content, err := ss.ScenarioContent("normal")
	require.NoError(t, err)
	assert.Equal(t, `[0, 900]`, content)

	names, err := ss.ScenarioNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"normal"}, names)
}

func TestScenarioStore_Names(t *testing.T) {
	ss := newTestStore(t)

	require.NoError(t, ss.SaveScenario("irregular", `[0, 1]`))
	require.NoError(t, ss.SaveScenario("normal", `[0, 1]`))

	names, err := ss.ScenarioNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"irregular", "normal"}, names)
}

func TestScenarioStore_GetAll(t *testing.T) {
	ss := newTestStore(t)

	require.NoError(t, ss.SaveScenario("a", `[0, 1]`))
	require.NoError(t, ss.SaveScenario("b", `[0, 2]`))

	all, err := ss.GetAllScenarios()
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, s := range all {
		assert.NotZero(t, s.ID)
		assert.NotEmpty(t, s.Content)
		assert.False(t, s.CreatedAt.IsZero())
	}
}

func TestScenarioStore_Delete(t *testing.T) {
	ss := newTestStore(t)

	require.NoError(t, ss.SaveScenario("doomed", `[0, 1]`))
	require.NoError(t, ss.DeleteScenario("doomed"))

	_, err := ss.ScenarioContent("doomed")
	assert.Error(t, err)

	// Deleting a missing scenario is a no-op
	require.NoError(t, ss.DeleteScenario("ghost"))
}
