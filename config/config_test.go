package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gigapi/draftpipe/model"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDataHome(t *testing.T) {
	require.Equal(t, "/srv/spells", DataHome(env(map[string]string{
		"SPELLS_DATA_HOME": "/srv/spells",
		"XDG_DATA_HOME":    "/home/u/.local/share",
	})))
	require.Equal(t, filepath.Join("/home/u/.local/share", "spells"),
		DataHome(env(map[string]string{"XDG_DATA_HOME": "/home/u/.local/share"})))
	require.Equal(t, "data", DataHome(env(nil)))

	cache, external := Subdirectories("windows")
	require.Equal(t, "Cache", cache)
	require.Equal(t, "External", external)
	cache, external = Subdirectories("darwin")
	require.Equal(t, "cache", cache)
	require.Equal(t, "external", external)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
data_home: /var/spells
event_type: TradDraft
engine:
  parallelism: 2
cache:
  s3:
    enabled: true
    bucket: spells
`), 0o644))
	t.Setenv("SPELLS_HTTP_PORT", "9000")
	t.Setenv("SPELLS_CACHE_S3_PREFIX", "v1")

	cfg, err := InitConfig(file)
	require.NoError(t, err)
	require.Equal(t, "/var/spells", cfg.DataHome)
	require.Equal(t, "TradDraft", cfg.EventType)
	require.Equal(t, 2, cfg.Engine.Parallelism)
	require.Equal(t, "9000", cfg.HTTP.Port)
	require.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	require.True(t, cfg.Cache.S3.Enabled)
	require.True(t, cfg.Cache.S3.Secure)
	require.Equal(t, "spells", cfg.Cache.S3.Bucket)
	require.Equal(t, "v1", cfg.Cache.S3.Prefix)
	require.NotEmpty(t, cfg.Cache.Root)
	require.NotEmpty(t, cfg.External)

	_, err = InitConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestInitConfig_DataHomeFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SPELLS_DATA_HOME", home)
	cfg, err := InitConfig("")
	require.NoError(t, err)
	require.Equal(t, home, cfg.DataHome)
	cache, external := Subdirectories(runtime.GOOS)
	require.Equal(t, filepath.Join(home, cache), cfg.Cache.Root)
	require.Equal(t, filepath.Join(home, external), cfg.External)
	require.Equal(t, 4, cfg.Engine.Parallelism)
}

func TestLoadExtensions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ext.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
columns:
  - name: num_p1p1
    expr: "pack_number == 0 and pick_number == 0 ? 1 : 0"
    kind: PICK_SUM
    views: [draft]
  - name: p1p1_rate
    expr: num_p1p1 / num_drafts
    dependencies: [num_p1p1, num_drafts]
    kind: AGG
`), 0o644))
	defs, err := LoadExtensions(file)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, model.KindPickSum, defs[0].Kind)
	require.Equal(t, []model.View{model.ViewDraft}, defs[0].Views)
	require.Equal(t, model.KindAgg, defs[1].Kind)
	require.Equal(t, []string{"num_p1p1", "num_drafts"}, defs[1].Dependencies)

	defs, err = LoadExtensions("")
	require.NoError(t, err)
	require.Empty(t, defs)

	require.NoError(t, os.WriteFile(file, []byte("columns:\n  - name: x\n    kind: NOPE\n"), 0o644))
	_, err = LoadExtensions(file)
	require.ErrorIs(t, err, model.ErrConfiguration)
}
