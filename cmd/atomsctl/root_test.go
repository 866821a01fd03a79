package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-atoms/pkg/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSetGetList(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "-n", "prefs", "set", "theme", "{mode: dark, contrast: 2}")
	require.NoError(t, err)
	_, err = run(t, dir, "-n", "prefs", "set", "counter", "42")
	require.NoError(t, err)

	out, err := run(t, dir, "-n", "prefs", "list")
	require.NoError(t, err)
	assert.Equal(t, "counter\ntheme\n", out)

	out, err = run(t, dir, "-n", "prefs", "--json", "get", "theme")
	require.NoError(t, err)
	var got struct {
		Path  string         `json:"path"`
		Meta  persist.Meta   `json:"meta"`
		Value map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "theme", got.Path)
	assert.Equal(t, "dark", got.Value["mode"])
	assert.EqualValues(t, 2, got.Value["contrast"])
	assert.NotEmpty(t, got.Meta.ETag)
}

func TestGetMissing(t *testing.T) {
	_, err := run(t, t.TempDir(), "get", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSetRejectsStaleETag(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "--json", "set", "counter", "1")
	require.NoError(t, err)
	var meta persist.Meta
	require.NoError(t, json.Unmarshal([]byte(out), &meta))

	_, err = run(t, dir, "set", "--etag", meta.ETag, "counter", "2")
	require.NoError(t, err)

	_, err = run(t, dir, "set", "--etag", meta.ETag, "counter", "3")
	require.ErrorIs(t, err, persist.ErrETagMismatch)
}

func TestSetRejectsInvalidYAML(t *testing.T) {
	_, err := run(t, t.TempDir(), "set", "broken", "{unclosed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse value")
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "set", "profile", "{name: ada, tags: [x, y]}")
	require.NoError(t, err)
	_, err = run(t, dir, "set", "counter", "7")
	require.NoError(t, err)

	out, err := run(t, dir, "--json", "describe")
	require.NoError(t, err)
	var fields []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	require.Len(t, fields, 3)
	assert.Equal(t, "counter", fields[0].Path)
	assert.Equal(t, "int", fields[0].Type)
	assert.Equal(t, "profile.name", fields[1].Path)
	assert.Equal(t, "string", fields[1].Type)
	assert.Equal(t, "profile.tags", fields[2].Path)
	assert.Equal(t, "[]string", fields[2].Type)

	out, err = run(t, dir, "describe", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "profile.name")
	assert.NotContains(t, out, "counter")
}
