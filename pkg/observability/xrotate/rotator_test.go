package xrotate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xrotate"
)

func TestNewLumberjack_Validation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		opts []xrotate.Option
		want error
	}{
		{"empty filename", "", nil, xrotate.ErrEmptyFilename},
		{"zero size", filepath.Join(dir, "a.log"), []xrotate.Option{xrotate.WithMaxSize(0)}, xrotate.ErrInvalidMaxSize},
		{"huge size", filepath.Join(dir, "a.log"), []xrotate.Option{xrotate.WithMaxSize(20000)}, xrotate.ErrInvalidMaxSize},
		{"no retention", filepath.Join(dir, "a.log"), []xrotate.Option{xrotate.WithMaxBackups(0), xrotate.WithMaxAge(0)}, xrotate.ErrInvalidRetention},
		{"negative backups", filepath.Join(dir, "a.log"), []xrotate.Option{xrotate.WithMaxBackups(-1)}, xrotate.ErrInvalidRetention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xrotate.NewLumberjack(tt.file, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLumberjack_WriteRotateClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "service.log")
	r, err := xrotate.NewLumberjack(path, xrotate.WithMaxSize(1), xrotate.WithMaxBackups(2), xrotate.WithLocalTime(true))
	require.NoError(t, err)

	_, err = r.Write([]byte(`{"msg":"first"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, r.Rotate())
	_, err = r.Write([]byte(`{"msg":"second"}` + "\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"second"}`+"\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), xrotate.ErrClosed)
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, xrotate.ErrClosed)
	assert.ErrorIs(t, r.Rotate(), xrotate.ErrClosed)
}

func TestFile_Options(t *testing.T) {
	f := xrotate.File{Path: filepath.Join(t.TempDir(), "app.log"), MaxSizeMB: 5, MaxAgeDays: 3, Compress: true}
	r, err := xrotate.NewLumberjack(f.Path, f.Options()...)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Len(t, xrotate.File{}.Options(), 1)
}
