package exp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLike(t *testing.T) {
	tests := []struct {
		name       string
		s, pattern string
		escape     rune
		ignoreCase bool
		want       bool
	}{
		{"percent matches empty", "abc", "abc%", 0, false, true},
		{"percent matches sequence", "abcdef", "a%f", 0, false, true},
		{"underscore matches one", "abc", "a_c", 0, false, true},
		{"underscore needs exactly one", "ac", "a_c", 0, false, false},
		{"anchored", "xabc", "abc", 0, false, false},
		{"case sensitive", "ABC", "abc", 0, false, false},
		{"case insensitive", "ABC", "a%", 0, true, true},
		{"unicode case folding", "STRASSE", "straße", 0, true, true},
		{"multibyte underscore", "日本語", "日_語", 0, false, true},
		{"emoji underscore", "a🎨b", "a_b", 0, false, true},
		{"nfc normalisation", "Cafe\u0301", "Caf\u00e9", 0, false, true},
		{"escaped percent", "50%", "50!%", '!', false, true},
		{"escaped percent is literal", "500", "50!%", '!', false, false},
		{"escaped underscore", "a_b", "a!_b", '!', false, true},
		{"escaped escape", "a!b", "a!!b", '!', false, true},
		{"regexp metachars are literal", "a.b(c)", "a.b(c)", 0, false, true},
		{"dot is not a wildcard", "axb", "a.b", 0, false, false},
		{"newline in value", "a\nb", "a%b", 0, false, true},
		{"letter escape ignoring case", "50%", "50X%", 'X', true, true},
		{"letter escape ignoring case is literal", "500", "50X%", 'X', true, false},
		{"letter escape matches either case", "50%", "50X%", 'x', true, true},
		{"letter escape is case sensitive", "50x%", "50x%", 'X', false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchLike(tt.s, tt.pattern, tt.escape, tt.ignoreCase)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchLikeTrailingEscape(t *testing.T) {
	_, err := MatchLike("a", "a!", '!', false)
	assert.Error(t, err)
}

func TestLikeCacheBounded(t *testing.T) {
	for i := range likeCacheSize * 3 {
		_, err := MatchLike("a", fmt.Sprintf("a%%%d", i), 0, false)
		require.NoError(t, err)
	}
	likeCache.Lock()
	defer likeCache.Unlock()
	assert.LessOrEqual(t, len(likeCache.m), likeCacheSize)
}
