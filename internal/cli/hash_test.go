package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQuery(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runHashCmd(t *testing.T, format, query string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHashCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--query", query})
	err := cmd.Execute()
	return buf.String(), err
}

func TestHashIgnoresParameterValues(t *testing.T) {
	rex := writeQuery(t, "filter:\n  input: {source: Animals, as: a}\n  predicate: {eq: [{prop: a.Name}, {param: name, value: Rex}]}\n")
	fido := writeQuery(t, "filter:\n  input: {source: Animals, as: a}\n  predicate: {eq: [{prop: a.Name}, {param: name, value: Fido}]}\n")
	other := writeQuery(t, "filter:\n  input: {source: Animals, as: a}\n  predicate: {ne: [{prop: a.Name}, {param: name, value: Rex}]}\n")

	h1, err := runHashCmd(t, "text", rex)
	require.NoError(t, err)
	h2, err := runHashCmd(t, "text", fido)
	require.NoError(t, err)
	h3, err := runHashCmd(t, "text", other)
	require.NoError(t, err)

	assert.NotEmpty(t, strings.TrimSpace(h1))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestHashJSONListsParams(t *testing.T) {
	out, err := runHashCmd(t, "json", filepath.Join(shopModel, "queries", "pets_named.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   HashResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.Hash)
	assert.Equal(t, []string{"name"}, resp.Data.Params)
}

func TestHashInvalidQueryFile(t *testing.T) {
	out, err := runHashCmd(t, "text", writeQuery(t, "select: {source: Customers}\n"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_QUERY]")

	_, err = runHashCmd(t, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
