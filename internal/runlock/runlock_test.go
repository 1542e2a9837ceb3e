package runlock

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusivePerTree(t *testing.T) {
	state := t.TempDir()
	root := t.TempDir()

	first, err := Acquire(state, root)
	require.NoError(t, err)

	_, err = Acquire(state, root)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := Acquire(state, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, first.Release())
	again, err := Acquire(state, root)
	require.NoError(t, err)
	assert.FileExists(t, again.Path())
	require.NoError(t, again.Release())
}

func TestPathForIsStableAndBounded(t *testing.T) {
	root := "/srv/" + strings.Repeat("very-long-directory-name/", 10) + "Movies"
	a, err := PathFor("/state", root)
	require.NoError(t, err)
	b, err := PathFor("/state", root+"/")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, filepath.Join("/state", "locks"), filepath.Dir(a))
	assert.LessOrEqual(t, len(filepath.Base(a)), maxTokenLen+len("-")+12+len(".lock"))
	assert.True(t, strings.HasSuffix(filepath.Base(a), ".lock"))
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
