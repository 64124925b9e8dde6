package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_Pass(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ sum")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios", "--format", "json")
	require.NoError(t, err)

	var result SuiteReport
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Scenarios, 1)
	assert.True(t, result.Scenarios[0].Pass)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "sum.yaml"), result.Scenarios[0].File)
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	fixture, err := filepath.Abs("testdata/fixtures/sum.cue")
	require.NoError(t, err)

	scenario := `name: wrong
fixtures:
  - ` + fixture + `
steps:
  - compile: Main.sum
    expect:
      outcome: translation
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [\n"), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "load: ")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")

	out, err = execute(t, "test", dir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "c.txt", "branch_one.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := scenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = scenarioFiles(dir, "branch*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "branch_one.yaml", filepath.Base(files[0]))

	_, err = scenarioFiles(dir, "[")
	assert.Error(t, err)
}
