package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf/elftest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	root := RootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestTypes(t *testing.T) {
	out, err := run(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "Maplink")
	assert.Contains(t, out, "header linked")
	assert.NotContains(t, out, "ListItem")
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema", "ItemList")
	require.NoError(t, err)
	assert.Contains(t, out, "0x10 bytes")
	assert.Contains(t, out, "items -> ListItem")

	_, err = run(t, "schema", "Nope")
	assert.Error(t, err)
}

func TestDumpBuild(t *testing.T) {
	dir := t.TempDir()
	base := elftest.Maplinks(2).MustBytes()
	basePath := writeFile(t, dir, "maplink.elf", base)
	docPath := filepath.Join(dir, "maplink.json")
	outPath := filepath.Join(dir, "out.elf")

	_, err := run(t, "dump", "maplink", basePath, "-o", docPath)
	require.NoError(t, err)

	doc, err := os.ReadFile(docPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"link_b"`)

	configPath := writeFile(t, dir, "config.toml", []byte("[codec]\nverify_round_trip = true\n"))
	_, err = run(t, "--config", configPath, "build", "Maplink", basePath, docPath, "-o", outPath)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestBuildRequiresOutput(t *testing.T) {
	_, err := run(t, "build", "MapId", "a", "b")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	same := writeFile(t, dir, "maps.elf", elftest.MapIds().MustBytes())

	out, err := run(t, "verify", "MapId", same)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	models := writeFile(t, dir, "models.elf", elftest.NpcModels().MustBytes())
	out, err = run(t, "verify", "DataNpcModel", models)
	assert.Error(t, err)
	assert.Contains(t, out, "differs")
}

func TestBadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", []byte(`log_format = "xml"`))

	_, err := run(t, "--config", path, "types")
	assert.Error(t, err)
}
