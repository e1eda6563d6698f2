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

const seedYAML = `
Artist:
  - {id: 1, name: Picasso}
  - {id: 2, name: Dali}
  - {id: 3, name: Degas}
Painting:
  - {id: 1, title: Guernica, price: 5000, artistId: 1}
  - {id: 2, title: Les Demoiselles, price: 1500, artistId: 1}
  - {id: 3, title: Persistence, price: 900.5, artistId: 2}
PaintingInfo:
  - {paintingId: 1, review: "Anti-war mural", metadata: '{"room": 7}'}
`

// seededDatabase creates a SQLite file with the gallery tables and rows.
func seededDatabase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "gallery.db")
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0644))

	buf := &bytes.Buffer{}
	cmd := NewInitCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--schema", gallerySchema, "--dsn", dbPath, "--data", seed})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "CREATE TABLE ARTIST (ARTIST_ID BIGINT NOT NULL")
	assert.Contains(t, out, "✓ 4 table(s) created (sqlite)")
	assert.Contains(t, out, "✓ Artist: 3 row(s)")
	assert.Contains(t, out, "✓ Painting: 3 row(s)")
	assert.Contains(t, out, "✓ PaintingInfo: 1 row(s)")
	return dbPath
}

func runQueryCommand(t *testing.T, format, dbPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewQueryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--schema", gallerySchema, "--dsn", dbPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueryCommand(t *testing.T) {
	dbPath := seededDatabase(t)

	out, err := runQueryCommand(t, "text", dbPath, "Painting", "artist.name = 'Picasso'", "--order", "price")
	require.NoError(t, err)
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "2 row(s)")
	demoiselles := strings.Index(out, "Les Demoiselles")
	guernica := strings.Index(out, "Guernica")
	require.NotEqual(t, -1, demoiselles)
	require.NotEqual(t, -1, guernica)
	assert.Less(t, demoiselles, guernica)
	assert.Contains(t, out, " 1500 ")
	assert.Contains(t, out, "NULL") // galleryId
}

func TestQueryCommandJSON(t *testing.T) {
	dbPath := seededDatabase(t)

	out, err := runQueryCommand(t, "json", dbPath, "Artist", "paintings.price < 1000")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Artist", resp.Data.Entity)
	assert.Contains(t, resp.Data.SQL, "SELECT DISTINCT")
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, "Dali", resp.Data.Rows[0]["name"])
	assert.Equal(t, float64(2), resp.Data.Rows[0]["id"])
	assert.Nil(t, resp.Data.Rows[0]["born"])
}

func TestQueryCommandJSONDocument(t *testing.T) {
	dbPath := seededDatabase(t)

	out, err := runQueryCommand(t, "json", dbPath, "PaintingInfo", "paintingId = 1")
	require.NoError(t, err)

	var resp struct {
		Data QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Rows, 1)
	row := resp.Data.Rows[0]
	assert.Equal(t, "Anti-war mural", row["review"])
	assert.Equal(t, map[string]any{"room": float64(7)}, row["metadata"])
}

func TestQueryCommandErrors(t *testing.T) {
	dbPath := seededDatabase(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"unknown entity", []string{"Sculpture"}, ExitCommandError, "unknown entity"},
		{"bad qualifier", []string{"Artist", "name = "}, ExitCommandError, ErrCodeParse},
		{"unknown path", []string{"Artist", "nickname = 'x'"}, ExitFailure, ErrCodeTranslate},
		{"unsupported driver", []string{"Artist", "--driver", "mysql"}, ExitCommandError, ErrCodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runQueryCommand(t, "text", dbPath, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestInitCommandDryRun(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewInitCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--schema", gallerySchema, "--dry-run", "--dialect", "postgres"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   InitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "postgres", resp.Data.Dialect)
	assert.False(t, resp.Data.Applied)
	require.Len(t, resp.Data.Statements, 4)
	assert.True(t, strings.HasPrefix(resp.Data.Statements[0], `CREATE TABLE "ARTIST" (`))
}

func TestInitCommandBadData(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("Artist:\n  - {id: 1, nickname: P}\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewInitCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--schema", gallerySchema, "--dsn", filepath.Join(dir, "gallery.db"), "--data", seed})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), `"nickname"`)
}
