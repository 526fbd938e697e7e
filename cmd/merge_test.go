package cmd

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"table-merger/core/config"
	"table-merger/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		yes   bool
		want  bool
	}{
		{"Yes", "yes\n", false, true},
		{"ShortYes", "Y\n", false, true},
		{"No", "no\n", false, false},
		{"Empty", "", false, false},
		{"NoNewline", "yes", false, true},
		{"Flag", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Replace it?", tt.yes))
			if !tt.yes {
				assert.Contains(t, out.String(), "Replace it? (yes/no)")
			}
		})
	}
}

// writeTable creates <root>/worker1 with an identity marker and one crawl page.
func writeTable(t *testing.T, root, page string) {
	t.Helper()
	dir := filepath.Join(root, "worker1", "pt-crawl", "__ac")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "worker1", "id"), []byte("W1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pageA"), []byte(page), 0o644))
}

// runRoot executes the root command from a scratch working directory.
func runRoot(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() {
		mergeYes, mergeResume, mergeExport, mergeNoAudit = false, false, false, false
	})

	RootCmd.SetArgs(args)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetOut(&bytes.Buffer{})
	return RootCmd.Execute()
}

func TestMergeCommand(t *testing.T) {
	base := t.TempDir()
	a, b, m := filepath.Join(base, "a"), filepath.Join(base, "b"), filepath.Join(base, "m")
	writeTable(t, a, "same")
	writeTable(t, b, "same")

	require.NoError(t, runRoot(t, "", "merge", a, b, m, "pt-crawl", "--no-audit"))

	data, err := os.ReadFile(filepath.Join(m, "worker1", "pt-crawl", "__ac", "pageA"))
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))
}

func TestMergeCommand_DeclinedPromptKeepsTable(t *testing.T) {
	base := t.TempDir()
	a, b, m := filepath.Join(base, "a"), filepath.Join(base, "b"), filepath.Join(base, "m")
	writeTable(t, a, "same")
	writeTable(t, b, "same")
	require.NoError(t, os.MkdirAll(m, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m, "keep"), []byte("old"), 0o644))

	require.NoError(t, runRoot(t, "no\n", "merge", a, b, m, "pt-crawl", "--no-audit"))

	_, err := os.Stat(filepath.Join(m, "keep"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(m, "worker1"))
	assert.True(t, os.IsNotExist(err))
}

func TestMergeCommand_IncompleteMergeFails(t *testing.T) {
	base := t.TempDir()
	a, b, m := filepath.Join(base, "a"), filepath.Join(base, "b"), filepath.Join(base, "m")
	writeTable(t, a, "same")
	writeTable(t, b, "same")
	require.NoError(t, os.Remove(filepath.Join(b, "worker1", "id")))

	err := runRoot(t, "", "merge", a, b, m, "pt-crawl", "--no-audit")
	assert.ErrorIs(t, err, errMergeIncomplete)
}

func TestMergeCommand_UnsupportedKind(t *testing.T) {
	base := t.TempDir()
	err := runRoot(t, "", "merge", filepath.Join(base, "a"), filepath.Join(base, "b"), filepath.Join(base, "m"), "pt-index", "--no-audit")
	assert.ErrorContains(t, err, "pt-index")
}

func TestNewApp(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.ApiKey = "secret"
	app := newApp(cfg, zap.NewNop(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/merges", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(rayid.Header))

	req := httptest.NewRequest("GET", "/merges", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "report routes are disabled without a ledger")
}
