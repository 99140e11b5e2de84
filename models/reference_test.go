package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordText(t *testing.T) {
	r := Record{
		"Informações": "  Impressora UV  ",
		"Quantidade":  float64(3),
		"Preço":       12.5,
		"Ativo":       true,
		"Vazio":       nil,
	}

	assert.Equal(t, "Impressora UV", r.Text("Informações"))
	assert.Equal(t, "3", r.Text("Quantidade"))
	assert.Equal(t, "12.5", r.Text("Preço"))
	assert.Equal(t, "true", r.Text("Ativo"))
	assert.Equal(t, "", r.Text("Vazio"))
	assert.Equal(t, "", r.Text("Imagem"))
}

func TestNewErrorResponse(t *testing.T) {
	assert.Equal(t, "汇率不可用", NewErrorResponse(CodeRateUnavailable, nil).Message)
	assert.Equal(t, "未知错误", NewErrorResponse(9999, nil).Message)
	assert.Equal(t, CodeSuccess, NewSuccessResponse("x").Code)
}
