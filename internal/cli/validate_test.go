package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormql/internal/schema"
)

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCommand_Valid(t *testing.T) {
	for _, path := range []string{gallerySchema, "../schema/testdata/gallery.cue"} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			out, err := runValidateCommand(t, "text", path)
			require.NoError(t, err)
			assert.Contains(t, out, "✓")
			assert.Contains(t, out, "is valid")
		})
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  - name: Artist
    table: ARTIST
    attributes:
      - {name: id, column: ARTIST_ID, type: BIGINT}
      - {name: id, column: OTHER_ID, type: WIDGET}
`), 0644))

	out, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, "WIDGET")

	out, err = runValidateCommand(t, "json", path)
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string                   `json:"code"`
			Details []schema.ValidationError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalidSchema, resp.Error.Code)
	assert.GreaterOrEqual(t, len(resp.Error.Details), 2)
	for _, d := range resp.Error.Details {
		assert.NotEqual(t, "load", d.Field, "validation errors should be reported one by one: %v", d)
	}
}

func TestValidateCommand_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities: [unterminated\n"), 0644))

	out, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Contains(t, out, "[E003] load:")
}

func TestValidationErrors(t *testing.T) {
	_, err := schema.LoadFile("/nonexistent/schema.yaml")
	require.Error(t, err)
	errs := validationErrors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "load", errs[0].Field)
	assert.Contains(t, errs[0].Message, "read schema")
}
