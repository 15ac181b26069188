package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewDirectoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	_, ok := cache.Get("/forms")
	assert.False(t, ok)

	cache.Set("/forms", []FileInfo{{Name: "a.pdf"}})
	files, ok := cache.Get("/forms")
	require.True(t, ok)
	assert.Equal(t, "a.pdf", files[0].Name)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("/forms")
	assert.False(t, ok, "entry expired")
}

func TestService_ServerInfo(t *testing.T) {
	f := newFixture(t, "", nil)

	info := f.service.ServerInfo(context.Background(), ServerDetails{
		ServerName: "pdf-autofill",
		Version:    "1.2.3",
		Model:      "gpt-4o-mini",
		Policy:     "meaningful",
	})

	assert.Equal(t, "pdf-autofill", info.ServerName)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, f.service.pathValidator.GetConfiguredDirectory(), info.DefaultDirectory)
	assert.True(t, info.FlattenByDefault)
	assert.Len(t, info.DirectoryContents, 2)
	assert.Len(t, info.AvailableTools, 6)
	for _, tool := range info.AvailableTools {
		assert.NotEqual(t, "Tool description not available", tool.Description, tool.Name)
	}
	assert.Contains(t, info.UsageGuidance, "MISSING_CREDENTIAL")

	// cached listing does not see new files
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "late.pdf"), []byte("%PDF-1.4"), 0o644))
	again := f.service.ServerInfo(context.Background(), ServerDetails{HasCredential: true})
	assert.Len(t, again.DirectoryContents, 2)
	assert.False(t, strings.Contains(again.UsageGuidance, "MISSING_CREDENTIAL"))
}
