package local

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	l, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())

	l, err = AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}
