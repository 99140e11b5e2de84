package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"plasprint_ai/logger"
	"plasprint_ai/models"
)

const (
	defaultCurrencyPrefix = "R$"
	defaultDisclaimer     = "(valores sem impostos)"
)

// 金额：$ 前缀（可带 US）或 USD 后缀；数字部分允许 1,234.56 与 1.234,56 两种写法
var moneyPattern = regexp.MustCompile(`(?:US)?\$\s?(\d+(?:[.,]\d+)*)|\b(\d+(?:[.,]\d+)*)\s?USD\b`)

// CurrencyAnnotator 在美元金额后追加本地货币换算
type CurrencyAnnotator struct {
	prefix     string
	disclaimer string
}

func NewCurrencyAnnotator(prefix, disclaimer string) *CurrencyAnnotator {
	if prefix == "" {
		prefix = defaultCurrencyPrefix
	}
	if disclaimer == "" {
		disclaimer = defaultDisclaimer
	}
	return &CurrencyAnnotator{prefix: prefix, disclaimer: disclaimer}
}

// Annotate 对 text 中的每个美元金额追加 "(R$ x)"；rate 为 nil 时原样返回。
// 已换算过的金额（R$ 金额或后面已跟换算括号）会被跳过，重复调用不会叠加换算。
func (a *CurrencyAnnotator) Annotate(text string, rate *models.ExchangeRate) string {
	if rate == nil || rate.Value <= 0 {
		return text
	}
	if !strings.Contains(text, "$") && !strings.Contains(text, "USD") {
		return text
	}

	matches := moneyPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	marker := " (" + a.prefix
	var b strings.Builder
	last := 0
	converted := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		var number string
		if m[2] >= 0 {
			number = text[m[2]:m[3]]
		} else {
			number = text[m[4]:m[5]]
		}

		if start > 0 && text[start-1] == 'R' && text[start] == '$' {
			continue
		}
		if strings.HasPrefix(text[end:], marker) {
			continue
		}

		amount, ok := ParseAmount(number)
		if !ok {
			logger.Debug("无法解析金额，保持原样", "token", text[start:end])
			continue
		}

		local := ConvertAmount(amount, rate.Value)
		if math.IsInf(local, 0) || math.IsNaN(local) {
			logger.Debug("换算结果超出范围，保持原样", "token", text[start:end])
			continue
		}

		b.WriteString(text[last:end])
		b.WriteString(marker)
		b.WriteString(" ")
		b.WriteString(FormatBRL(local))
		b.WriteString(")")
		last = end
		converted++
	}

	if converted == 0 {
		return text
	}
	b.WriteString(text[last:])

	out := strings.TrimRight(b.String(), "\r\n")
	return out + "\n" + a.disclaimer
}

// ParseAmount 按分隔符规则解析金额数字部分：
// 只有逗号时逗号为小数点；只有句点时小数部分不超过 3 位则为小数点，否则为千位分隔符；
// 两者都有时靠右的为小数点。同一分隔符出现多次时只能是千位分隔符。
func ParseAmount(number string) (float64, bool) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(number, ",")
	lastDot := strings.LastIndex(number, ".")

	var s string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(number, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(number, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(number, ",") > 1 {
			s = stripGrouping(number, ",")
		} else {
			s = strings.ReplaceAll(number, ",", ".")
		}
	case lastDot >= 0:
		switch {
		case strings.Count(number, ".") > 1:
			s = stripGrouping(number, ".")
		case len(number)-lastDot-1 <= 3:
			s = number
		default:
			s = strings.ReplaceAll(number, ".", "")
		}
	default:
		s = number
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// stripGrouping 去掉千位分隔符；除第一组外每组必须恰好 3 位，否则返回空串
func stripGrouping(number, sep string) string {
	groups := strings.Split(number, sep)
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return ""
		}
	}
	return strings.Join(groups, "")
}

// ConvertAmount 换算并保留两位小数；正数金额换算后不足 0.01 时取 0.01
func ConvertAmount(amount, rate float64) float64 {
	v := math.Round(amount*rate*100) / 100
	if v == 0 && amount > 0 {
		return 0.01
	}
	return v
}

// FormatBRL 按巴西格式输出：句点为千位分隔符，逗号为小数点，两位小数
func FormatBRL(v float64) string {
	digits := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(digits, ".")

	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(c)
	}

	sign := ""
	if v < 0 && digits != "0.00" {
		sign = "-"
	}
	return sign + grouped.String() + "," + frac
}
