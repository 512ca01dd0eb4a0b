package diskusage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	du, err := New(dir)
	require.NoError(t, err)

	r := du.Report()
	assert.Equal(t, dir, r.Path)
	assert.LessOrEqual(t, r.Available, r.Total)
	assert.GreaterOrEqual(t, r.UsedPercent, 0.0)
	assert.LessOrEqual(t, r.UsedPercent, 100.0)
	assert.NotEmpty(t, r.TotalText)
}

func TestNew_MissingPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
