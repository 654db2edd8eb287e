package archive

import (
	"path/filepath"
	"testing"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	st, err := New(Config{Backend: "local", Path: dir})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, st)
	assert.Equal(t, dir, st.(*LocalFS).Root())

	st, err = New(Config{Backend: "S3", S3: S3Config{Bucket: "quant", Endpoint: "http://localhost:9000"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, st)

	_, err = New(Config{Backend: "s3"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(Config{Backend: "ftp"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"reports/AAPL/x.yaml", "reports/AAPL/x.yaml", false},
		{"reports//AAPL/./x.yaml", "reports/AAPL/x.yaml", false},
		{`features\AAPL.csv`, "features/AAPL.csv", false},
		{"a/../b.csv", "b.csv", false},
		{"", "", true},
		{"../etc/passwd", "", true},
		{"/abs/path", "", true},
	}
	for _, tt := range tests {
		got, err := cleanPath(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, core.ErrInvalidParameter, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/yaml", contentType("r.yaml"))
	assert.Equal(t, "text/csv", contentType("f.CSV"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
