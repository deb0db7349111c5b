package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShort(t *testing.T) {
	s := Short()
	require.True(t, strings.HasPrefix(s, Version+" ("))
	require.Contains(t, s, Revision)
}

func TestDetailed(t *testing.T) {
	d := Detailed()
	require.Contains(t, d, Version)
	require.Contains(t, d, BuildDate)
	require.NotEmpty(t, AppName)
}
