package services

import (
	"github.com/pkoukk/tiktoken-go"

	"plasprint_ai/logger"
	"plasprint_ai/utils"
)

// TokenCounter 估算文本的 token 数
type TokenCounter func(text string) int

// NewTokenCounter 优先使用 tiktoken 的 cl100k_base 编码，加载失败（例如离线）时退回字数估算
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("加载tiktoken编码失败，使用字数估算", "error", err)
		return utils.CalculateTokens
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}
