package xconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverConfig struct {
	Addr    string `koanf:"addr" validate:"required"`
	Verbose bool   `koanf:"verbose"`
}

type appConfig struct {
	Name   string       `koanf:"name" validate:"required"`
	Server serverConfig `koanf:"server"`
	Ratio  float64      `koanf:"ratio" validate:"gte=0,lte=1"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpen_Formats(t *testing.T) {
	yamlPath := writeFile(t, "app.yaml", "name: users\nserver:\n  addr: \":8080\"\n")
	s, err := Open(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, s.Format())
	assert.Equal(t, yamlPath, s.Path())
	assert.Equal(t, ":8080", s.Koanf().String("server.addr"))

	jsonPath := writeFile(t, "app.json", `{"name":"users","ratio":0.5}`)
	s, err = Open(jsonPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.Koanf().Float64("ratio"), 1e-9)

	_, err = Open("")
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = Open("app.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Open(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)
	_, err = Open(writeFile(t, "bad.json", "{"))
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestFromBytes(t *testing.T) {
	s, err := FromBytes(nil, FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, s.Koanf().Keys())
	assert.ErrorIs(t, s.Reload(), ErrNotReloadable)

	_, err = FromBytes([]byte("a: 1"), Format("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_DefaultsAndValidation(t *testing.T) {
	defaults := appConfig{Name: "users", Server: serverConfig{Addr: ":8080"}, Ratio: 1}

	s, err := FromBytes([]byte("server:\n  verbose: true\n"), FormatYAML)
	require.NoError(t, err)
	cfg, err := Load(s, "", defaults)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Server.Verbose)
	assert.Equal(t, "users", cfg.Name)

	s, err = FromBytes([]byte("ratio: 2\nserver:\n  addr: \"\"\n"), FormatYAML)
	require.NoError(t, err)
	_, err = Load(s, "", defaults)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "appConfig.Ratio")
	assert.Contains(t, err.Error(), "appConfig.Server.Addr")

	cfg, err = Load[appConfig](nil, "", defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)
}

type checked struct {
	Min int `koanf:"min"`
	Max int `koanf:"max"`
}

func (c checked) Validate() error {
	if c.Min > c.Max {
		return assert.AnError
	}
	return nil
}

func TestLoad_ValidateMethod(t *testing.T) {
	s, err := FromBytes([]byte(`{"limits":{"min":5,"max":1}}`), FormatJSON)
	require.NoError(t, err)
	_, err = Load(s, "limits", checked{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, assert.AnError)
}

type taggedChecked struct {
	Name   string  `koanf:"name" validate:"required"`
	Limits checked `koanf:"limits"`
}

func (c taggedChecked) Validate() error { return c.Limits.Validate() }

func TestValidate_JoinsTagAndMethodErrors(t *testing.T) {
	err := Validate(taggedChecked{Limits: checked{Min: 2, Max: 1}})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "taggedChecked.Name")

	assert.NoError(t, Validate(taggedChecked{Name: "x"}))
	assert.NoError(t, Validate(42))
}

func TestEnvOverride(t *testing.T) {
	env := []string{
		"USERS_SERVER__ADDR=:9090",
		"USERS_SERVER__VERBOSE=true",
		"USERS_=ignored",
		"OTHER_NAME=nope",
	}
	s, err := FromBytes([]byte("name: users\nserver:\n  addr: \":8080\"\n"), FormatYAML,
		WithEnvPrefix("USERS_"), withEnviron(func() []string { return env }))
	require.NoError(t, err)

	cfg, err := Load(s, "", appConfig{})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Server.Verbose)
	assert.Equal(t, "users", cfg.Name)
}

func TestReload_KeepsOldConfigOnParseError(t *testing.T) {
	path := writeFile(t, "app.json", `{"name":"v1"}`)
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"v2"}`), 0o600))
	require.NoError(t, s.Reload())
	assert.Equal(t, "v2", s.Koanf().String("name"))

	require.NoError(t, os.WriteFile(path, []byte(`{"name":`), 0o600))
	assert.ErrorIs(t, s.Reload(), ErrParseFailed)
	assert.Equal(t, "v2", s.Koanf().String("name"))
}
