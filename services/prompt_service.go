package services

import (
	"fmt"
	"sort"
	"strings"

	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

// renderSheet 把一个工作表渲染为 "列: 值 | 列: 值" 的逐行文本，列按名称排序保证稳定
func renderSheet(name string, rows []models.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", name)
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			if v := row.Text(col); v != "" {
				cells = append(cells, col+": "+strings.ReplaceAll(v, "\n", " "))
			}
		}
		if len(cells) > 0 {
			b.WriteString("- ")
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// buildAskPrompt 构建提问提示词；上下文超过 maxTokens 时截断
func buildAskPrompt(question string, sheetNames []string, sheets map[string][]models.Record, maxTokens int, count TokenCounter) string {
	var ctxText strings.Builder
	for _, name := range sheetNames {
		rows, ok := sheets[name]
		if !ok || len(rows) == 0 {
			continue
		}
		ctxText.WriteString(renderSheet(name, rows))
		ctxText.WriteString("\n")
	}

	if count == nil {
		count = utils.CalculateTokens
	}
	context, truncated := utils.TruncateWithCounter(ctxText.String(), maxTokens, count)
	if truncated {
		logger.Warn("上下文超过token上限，已截断", "max_tokens", maxTokens)
	}

	return fmt.Sprintf(`Dados das planilhas:

%s
Pergunta do operador:
%s

Responda com base nos dados acima. Se a informação não estiver nas planilhas, diga isso claramente.`,
		context, strings.TrimSpace(question))
}
