package xas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTokens(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		tokens []string
	}{
		{"empty", nil, nil},
		{"plain", []string{"Cu", "K", "edge"}, []string{"Cu", "K", "edge"}},
		{"ascii hyphen", []string{"Cu-K", "edge"}, []string{"Cu", "K", "edge"}},
		{"multiple hyphens", []string{"Fe-L3-edge"}, []string{"Fe", "L3", "edge"}},
		{"unicode hyphen before edge", []string{"L3‐edge"}, []string{"L3", "edge"}},
		{"unicode hyphen before Edge", []string{"K‐Edge"}, []string{"K", "Edge"}},
		{"unicode hyphen elsewhere kept", []string{"Cu‐K"}, []string{"Cu‐K"}},
		{"drops letterless", []string{"1.5", "(", "eV", ".", "-"}, []string{"eV"}},
		{"keeps punctuated letters", []string{"(a)"}, []string{"(a)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTokens(tt.input)
			assert.Equal(t, tt.tokens, got.Tokens)
			assert.Equal(t, len(got.Tokens), got.Len())
			assert.Len(t, got.Lower, got.Len())
		})
	}
}

func TestNormalizeTokens_LowerView(t *testing.T) {
	got := NormalizeTokens([]string{"XANES", "Cu-K", "EDGES"})
	assert.Equal(t, []string{"XANES", "Cu", "K", "EDGES"}, got.Tokens)
	assert.Equal(t, []string{"xanes", "cu", "k", "edges"}, got.Lower)
}

func TestAlnumTokens(t *testing.T) {
	got := AlnumTokens([]string{"Cu", "K-edge", "XANES", ".", "in-plane", "L3", ""})
	assert.Equal(t, []string{"Cu", "XANES", "L3"}, got)
}
