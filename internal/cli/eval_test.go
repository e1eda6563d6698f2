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

const paintingsYAML = `
- id: 1
  title: Guernica
  price: 5000
  artist: {name: Picasso}
- id: 2
  title: Les Demoiselles
  price: 1500
  artist: {name: Picasso}
- id: 3
  title: Persistence
  price: 900.5
  artist: {name: Dali}
- id: 5
  title: Swans
  price: null
  artist: {name: Dali}
`

func writeObjects(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runEvalCommand(t *testing.T, format string, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// titles extracts the title of every canonical object line.
func titles(t *testing.T, out string) []string {
	t.Helper()
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		got = append(got, obj.Title)
	}
	return got
}

func TestEvalCommand(t *testing.T) {
	path := writeObjects(t, "paintings.yaml", paintingsYAML)

	tests := []struct {
		name  string
		args  []string
		want  []string
		count string
	}{
		{"comparison ordered", []string{"price > 1000", path, "--order", "price desc"}, []string{"Guernica", "Les Demoiselles"}, "2 of 4"},
		{"to-one path", []string{"artist.name = 'Dali'", path, "--order", "title"}, []string{"Persistence", "Swans"}, "2 of 4"},
		{"null skipped by comparison", []string{"price < 10000", path, "--order", "id"}, []string{"Guernica", "Les Demoiselles", "Persistence"}, "3 of 4"},
		{"null ordering", []string{"artist.name like 'D%'", path, "--order", "price"}, []string{"Swans", "Persistence"}, "2 of 4"},
		{"window", []string{"id > 0", path, "--order", "id", "--offset", "1", "--limit", "2"}, []string{"Les Demoiselles", "Persistence"}, "2 of 4"},
		{"parameter", []string{"title likeIgnoreCase $t", path, "--param", "t=s%"}, []string{"Swans"}, "1 of 4"},
		{"no match", []string{"title = 'Sunflowers'", path}, nil, "0 of 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runEvalCommand(t, "text", "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(t, out))
			assert.Contains(t, out, tt.count+" object(s) matched")
		})
	}
}

func TestEvalCommandCanonicalOutput(t *testing.T) {
	out, err := runEvalCommand(t, "text", `[{"title": "Swans", "id": 5, "tags": ["b", "a"]}]`, "id = 5", "-")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":5,\"tags\":[\"b\",\"a\"],\"title\":\"Swans\"}\n1 of 1 object(s) matched\n", out)
}

func TestEvalCommandJSON(t *testing.T) {
	path := writeObjects(t, "paintings.json", `{"id": 1, "title": "Guernica"}`)
	out, err := runEvalCommand(t, "json", "", "title like 'G%'", path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Matched)
	require.Len(t, resp.Data.Objects, 1)
	assert.JSONEq(t, `{"id": 1, "title": "Guernica"}`, string(resp.Data.Objects[0]))
}

func TestEvalCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"missing file", "", []string{"id = 1", "/nonexistent/objects.json"}, ExitCommandError, ErrCodeNotFound},
		{"malformed json", `[{"id": 1,}]`, []string{"id = 1", "-"}, ExitCommandError, ErrCodeParse},
		{"scalar document", `42`, []string{"id = 1", "-"}, ExitCommandError, "expected an array of objects"},
		{"bad qualifier", `[]`, []string{"id =", "-"}, ExitCommandError, ErrCodeParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runEvalCommand(t, "text", tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestReadObjectsYAMLMatchesJSON(t *testing.T) {
	fromYAML, err := readObjects(writeObjects(t, "a.yml", "- {id: 1, title: Guernica}\n"), nil)
	require.NoError(t, err)
	fromJSON, err := readObjects(writeObjects(t, "a.json", `[{"id": 1, "title": "Guernica"}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)
}
