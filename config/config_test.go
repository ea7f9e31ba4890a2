package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"task-service/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValidAndMatchesDeployedPolicy(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	rs, err := cfg.BuildRuleSet()
	require.NoError(t, err)

	rules := rs.RulesFor("POST /tasks")
	require.Len(t, rules, 4)
	assert.EqualValues(t, 200, rules[0].MaxHits)
	assert.Equal(t, 24*time.Hour, rules[0].Window)
	assert.EqualValues(t, 50, rules[1].MaxHits)
	assert.Equal(t, domain.ClassBurst, rules[2].EffectiveClass())
	assert.Equal(t, 10*time.Second, rules[2].Window)
	assert.Equal(t, domain.ClassThrottle, rules[3].EffectiveClass())

	assert.Len(t, rs.RulesFor("GET /users"), 2)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "X-Api-Key", cfg.RateLimit.KeyHeader)
	assert.True(t, cfg.RateLimit.TrustXFF)
	assert.True(t, cfg.RateLimit.Headers, "default kept")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.CleanupEvery)
	assert.Equal(t, 8, cfg.Concurrency.Max)
	assert.Equal(t, 250*time.Millisecond, cfg.Concurrency.Timeout)
	assert.Equal(t, StatsRedis, cfg.Stats.Backend)
	assert.Equal(t, "localhost:6379", cfg.Stats.Redis.Addr)
	assert.Equal(t, "ratelimit:stats", cfg.Stats.Redis.Prefix, "default kept")
	assert.True(t, cfg.Stats.Redis.TrackKeys)

	rs, err := cfg.BuildRuleSet()
	require.NoError(t, err)
	assert.Equal(t, 4, rs.Len(), "file rules replace the default rules")
	assert.Equal(t, []domain.RouteID{"GET /users", "POST /tasks"}, rs.Routes())

	users := rs.RulesFor("GET /users")
	require.Len(t, users, 2)
	assert.EqualValues(t, 10, users[1].MaxHits)
	assert.Equal(t, time.Second, users[1].Window)
}

func TestLoad_JSONKeepsDefaultGlobalsOnlyWhenNoRulesDeclared(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "rules.json"))
	require.NoError(t, err)

	assert.False(t, cfg.RateLimit.Headers)
	assert.Equal(t, StatsNone, cfg.Stats.Backend)
	assert.Empty(t, cfg.RateLimit.Global)

	rs, err := cfg.BuildRuleSet()
	require.NoError(t, err)
	assert.Len(t, rs.RulesFor("PUT /tasks/{task_id}"), 1)
	assert.Empty(t, rs.RulesFor("POST /tasks"))
}

func TestParse_NoRulesKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("concurrency:\n  max: 3\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency.Max)
	assert.Equal(t, Default().RateLimit.Global, cfg.RateLimit.Global)
	assert.Equal(t, Default().RateLimit.Routes, cfg.RateLimit.Routes)
}

func TestParse_MisconfiguredRuleIsFatal(t *testing.T) {
	cases := map[string]string{
		"zero count":    `{"ratelimit": {"global": [{"limit": "0 per minute"}]}}`,
		"negative":      `{"ratelimit": {"global": [{"limit": "-5 per minute"}]}}`,
		"bad unit":      `{"ratelimit": {"global": [{"limit": "5 per fortnight"}]}}`,
		"garbage":       `{"ratelimit": {"routes": {"GET /": [{"limit": "lots"}]}}}`,
		"unknown class": `{"ratelimit": {"global": [{"limit": "5 per minute", "class": "spike"}]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "json")
			require.ErrorIs(t, err, domain.ErrInvalidRule)
		})
	}
}

func TestParse_InvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  `{"stats": {"backend": "kafka"}}`,
		"redis no addr":    `{"stats": {"backend": "redis"}}`,
		"redis bad bucket": `{"stats": {"backend": "redis", "redis": {"addr": "x:1", "bucket": "hour"}}}`,
		"negative max":     `{"concurrency": {"max": -1}}`,
		"negative cleanup": `{"ratelimit": {"cleanup_every": "-1s"}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "json")
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_UnknownKeyIsRejected(t *testing.T) {
	_, err := Parse([]byte(`{"ratelimit": {"globl": []}}`), "json")
	require.ErrorIs(t, err, ErrLoadFailed)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("rules.toml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = Load(bad)
	require.ErrorIs(t, err, ErrLoadFailed)
}
