package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveIDNumericSuffix(t *testing.T) {
	t.Parallel()

	id, err := DeriveID("otherstories", "https://www.stories.com/en-eu/product/wool-coat-1217076002/")
	require.NoError(t, err)
	require.Equal(t, "otherstories_1217076002", id)
}

func TestDeriveIDIgnoresQueryAndFragment(t *testing.T) {
	t.Parallel()

	withNoise, err := DeriveID("b", "https://shop.example/product/linen-shirt-42?utm=x#gallery")
	require.NoError(t, err)
	plain, err := DeriveID("b", "https://shop.example/product/linen-shirt-42")
	require.NoError(t, err)
	require.Equal(t, plain, withNoise)
	require.Equal(t, "b_42", plain)
}

func TestDeriveIDHashFallback(t *testing.T) {
	t.Parallel()

	id, err := DeriveID("b", "https://shop.example/product/no-numeric-suffix/")
	require.NoError(t, err)
	require.Regexp(t, `^b_[0-9a-f]{16}$`, id)

	again, err := DeriveID("b", "https://SHOP.example/product/no-numeric-suffix/")
	require.NoError(t, err)
	require.Equal(t, id, again, "hash ids must be stable across host casing")
}

func TestDeriveIDRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := DeriveID("b", "://not-a-url")
	require.Error(t, err)
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://a.com/p/x-1#top", "https://a.com/p/x-1"},
		{"strips query", "https://a.com/p/x-1?page=2&b=1", "https://a.com/p/x-1"},
		{"lowercases host", "https://A.COM/P/x-1", "https://a.com/P/x-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
