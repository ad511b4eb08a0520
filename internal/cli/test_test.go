package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeScenarioDir writes one scenario named name under dir/scenarios,
// pointing at the shop model by absolute path.
func writeScenarioDir(t *testing.T, dir, name, assertions string) string {
	t.Helper()
	model, err := filepath.Abs(shopModel)
	require.NoError(t, err)

	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	body := fmt.Sprintf(`name: %s
model: %q
query:
  filter:
    input: {source: Animals, as: a}
    predicate:
      eq: [{prop: a.Name}, {param: name, value: Rex}]
assertions:
%s`, name, model, assertions)
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, name+".yaml"), []byte(body), 0o644))
	return scenarios
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCmd(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ animals_named\n")
	assert.Contains(t, out, "✓ paged_orders_mysql57\n")
	assert.Contains(t, out, "Test Summary: 9 passed, 0 failed, 9 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCmd(t, "json", harnessScenarios, "--filter", "paged_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 3, resp.Data.Passed)
	for _, s := range resp.Data.Scenarios {
		assert.True(t, s.Pass, s.Name)
	}
}

func TestTestCommandFailingScenario(t *testing.T) {
	scenarios := writeScenarioDir(t, t.TempDir(), "wrong", `  - type: sql_contains
    sql: "FROM `+"`Birds`"+`"
`)

	out, err := runTestCmd(t, "text", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong\n")
	assert.Contains(t, out, "Assertion failed: sql_contains")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	scenarios := writeScenarioDir(t, t.TempDir(), "wrong", `  - type: args_equal
    args: [Fido]
`)

	out, err := runTestCmd(t, "json", scenarios)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	scenarios := writeScenarioDir(t, dir, "pets", `  - type: columns_equal
    columns: [Id, Name, Lives, Breed, OwnerId, Discriminator]
`)
	goldenPath := filepath.Join(dir, "golden", "pets.golden")

	_, err := runTestCmd(t, "text", scenarios, "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "animals_named.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// A second run compares against the written snapshot.
	_, err = runTestCmd(t, "text", scenarios)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("-- sql\nSELECT 1\n"), 0o644))
	out, err := runTestCmd(t, "text", scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandGoldenFlag(t *testing.T) {
	dir := t.TempDir()
	scenarios := writeScenarioDir(t, dir, "pets", `  - type: args_equal
    args: [Rex]
`)
	elsewhere := filepath.Join(dir, "snapshots")

	_, err := runTestCmd(t, "text", scenarios, "--update", "--golden", elsewhere)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(elsewhere, "pets.golden"))
	assert.NoFileExists(t, filepath.Join(dir, "golden", "pets.golden"))
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCmd(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "golden")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "paged-lateral.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "paged-window.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "hierarchy.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "paged-*")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "paged-")
	}

	_, err = findScenarioFiles(tmpDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
