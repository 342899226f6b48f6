package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPrefersPrefixedKey(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")
	require.Equal(t, "console", Get("LOG_FORMAT", "json"))
}

func TestGetFallsBackToBareKeyThenDefault(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_FORMAT", "  ")
	t.Setenv("LOG_FORMAT", "console")
	require.Equal(t, "console", Get("LOG_FORMAT", "json"))

	t.Setenv("LOG_FORMAT", "")
	require.Equal(t, "json", Get("LOG_FORMAT", "json"))
}
