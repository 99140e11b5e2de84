package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "maquina de impressao", Normalize("Máquina de Impressão"))
	assert.Equal(t, "cabecote japones", Normalize("CABEÇOTE Japonês"))
	assert.Equal(t, "", Normalize(""))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"impressora", "uv", "r", "1", "200"}, Tokenize("Impressora UV, R$ 1.200!"))
}

func TestContainsKeyword(t *testing.T) {
	text := Normalize("Impressora fabricada nos Estados Unidos; uso em tampografia.")

	assert.True(t, ContainsKeyword(text, "impressora"))
	assert.True(t, ContainsKeyword(text, "Estados Unidos"))
	assert.True(t, ContainsKeyword(text, "TAMPOGRAFIA"))
	assert.False(t, ContainsKeyword(text, "uv"))
	assert.False(t, ContainsKeyword(text, "impress"))
	assert.False(t, ContainsKeyword(text, "  "))
	assert.False(t, ContainsKeyword(Normalize("vocês usam"), "usa"))
}

func TestDeduplicateSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DeduplicateSlice([]string{" a", "b", "a ", "", "b"}))
}

func TestTruncateByTokens(t *testing.T) {
	text := "um dois três\nquatro cinco\nseis"

	out, truncated := TruncateByTokens(text, 5)
	assert.True(t, truncated)
	assert.Equal(t, "um dois três\nquatro cinco", out)

	out, truncated = TruncateByTokens(text, 100)
	assert.False(t, truncated)
	assert.Equal(t, text, out)

	out, truncated = TruncateByTokens(text, 0)
	assert.False(t, truncated)
	assert.Equal(t, text, out)
}

func TestCalculateTokens(t *testing.T) {
	assert.Equal(t, 3, CalculateTokens("um dois três"))
	assert.Equal(t, 4, CalculateTokens("中文"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("abc", 5))
	assert.Equal(t, "ção...", Preview("çãoxyz", 3))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" x "))
}
