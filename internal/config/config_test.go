package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NOTION_TOKEN", "secret_x")
	t.Setenv("ARTICLES_DB_ID", "db-1")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "2025-09-03", cfg.NotionVersion)
	assert.Equal(t, "https://api.notion.com", cfg.NotionBaseURL)
	assert.Equal(t, "state.sqlite", cfg.StatePath)
	assert.Equal(t, "configs/sources.yaml", cfg.SourcesConfigPath)
	assert.Equal(t, "debug_published_at.jsonl", cfg.DebugDumpPath)
	assert.Equal(t, 50, cfg.MaxEntriesPerFeed)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 5.0, cfg.NaverQPS)
	assert.Equal(t, "8080", cfg.MonitoringPort)
	assert.False(t, cfg.UpdateExisting)
	assert.False(t, cfg.DebugDump)
	assert.False(t, cfg.NaverEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("UPDATE_EXISTING", "1")
	t.Setenv("DEBUG_DUMP", "true")
	t.Setenv("NAVER_CLIENT_ID", "nid")
	t.Setenv("NAVER_CLIENT_SECRET", "nsecret")
	t.Setenv("REQUEST_TIMEOUT", "45")
	t.Setenv("RETRY_DELAY", "500ms")
	t.Setenv("MAX_ENTRIES_PER_FEED", "20")
	t.Setenv("DATABASE_URL", "postgres://localhost/feed")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.True(t, cfg.UpdateExisting)
	assert.True(t, cfg.DebugDump)
	assert.True(t, cfg.NaverEnabled())
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 20, cfg.MaxEntriesPerFeed)
	assert.Equal(t, "postgres://localhost/feed", cfg.DatabaseURL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnv_UpdateExistingOnlyOnTruthyValues(t *testing.T) {
	setRequired(t)
	t.Setenv("UPDATE_EXISTING", "0")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.False(t, cfg.UpdateExisting)
}

func TestFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("ARTICLES_DB_ID", "db-1")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingNotionToken)

	t.Setenv("NOTION_TOKEN", "secret_x")
	t.Setenv("ARTICLES_DB_ID", " ")
	_, err = FromEnv()
	assert.ErrorIs(t, err, ErrMissingArticlesDB)
}

func TestValidate_LogFormat(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := FromEnv()

	assert.ErrorContains(t, err, "LOG_FORMAT")
}

func TestLoadSources_MissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultSources(), s)
	assert.Len(t, s.NaverKeywords, 8)
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feeds:
  - name: 보안뉴스
    url: http://www.boannews.com/media/news_rss.xml
naver_keywords:
  - 랜섬웨어
`), 0o644))

	s, err := LoadSources(path)

	require.NoError(t, err)
	assert.Equal(t, []Feed{{Name: "보안뉴스", URL: "http://www.boannews.com/media/news_rss.xml"}}, s.Feeds)
	assert.Equal(t, []string{"랜섬웨어"}, s.NaverKeywords)
}

func TestLoadSources_Invalid(t *testing.T) {
	dir := t.TempDir()

	noURL := filepath.Join(dir, "nourl.yaml")
	require.NoError(t, os.WriteFile(noURL, []byte("feeds:\n  - name: x\n"), 0o644))
	_, err := LoadSources(noURL)
	assert.ErrorContains(t, err, "needs both name and url")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("feeds: [\n"), 0o644))
	_, err = LoadSources(broken)
	assert.Error(t, err)
}

func TestRepoSourcesFile(t *testing.T) {
	s, err := LoadSources("../../configs/sources.yaml")

	require.NoError(t, err)
	assert.Equal(t, DefaultSources(), s)
}
