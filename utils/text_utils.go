package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DeduplicateSlice 去重字符串切片
func DeduplicateSlice(input []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0)

	for _, val := range input {
		val = strings.TrimSpace(val)
		if val != "" && !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}

	return result
}

// Normalize 去除重音并转为小写，便于匹配 "Máquina" 与 "maquina"
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(out)
}

// Tokenize 将文本规范化后按非字母数字字符切分
func Tokenize(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsKeyword 判断规范化文本中是否出现关键词（按词边界匹配，支持多词关键词）
func ContainsKeyword(normalized string, keyword string) bool {
	kw := Normalize(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	for start := 0; start <= len(normalized)-len(kw); {
		idx := strings.Index(normalized[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if isBoundary(normalized, idx-1) && isBoundary(normalized, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80)
}

// CalculateTokens 估算文本的token数量：中文字符2token，其他每个单词1token
func CalculateTokens(text string) int {
	chinese := 0
	for _, r := range text {
		if r >= '一' && r <= '龥' {
			chinese++
		}
	}

	words := len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) || (r >= '一' && r <= '龥')
	}))

	return chinese*2 + words
}

// TruncateByTokens 按行累加token，超过 maxTokens 的行被丢弃
func TruncateByTokens(text string, maxTokens int) (string, bool) {
	return TruncateWithCounter(text, maxTokens, CalculateTokens)
}

// TruncateWithCounter 同 TruncateByTokens，使用指定的 token 计数函数
func TruncateWithCounter(text string, maxTokens int, count func(string) int) (string, bool) {
	if maxTokens <= 0 {
		return text, false
	}
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	tokenCount := 0

	for _, line := range lines {
		lineTokens := count(line)
		if tokenCount+lineTokens > maxTokens {
			return strings.Join(kept, "\n"), true
		}
		kept = append(kept, line)
		tokenCount += lineTokens
	}
	return text, false
}

// Preview 截取前 n 个字符用于日志
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

// IsBlank 判断字符串是否只包含空白
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
