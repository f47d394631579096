package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter_Count(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	require.Equal(t, 0, c.Count(""))
	require.Equal(t, 2, c.Count("hello world"))
	require.Greater(t, c.Count("What is customer experience and why does it matter?"), 5)
}

func TestNew_UnknownModelFallsBack(t *testing.T) {
	c, err := New("not-a-real-model")
	require.NoError(t, err)
	require.Equal(t, 2, c.Count("hello world"))
}
