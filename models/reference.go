package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record 工作表中的一行：列名 -> 标量值
type Record map[string]any

// Text 返回列的文本值，列不存在或为空时返回空字符串
func (r Record) Text(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ReferenceRow 参考数据中的一条描述记录，可附带图片
type ReferenceRow struct {
	Description string   `json:"description"`
	ImageRefs   []string `json:"image_refs,omitempty"`
}

// ScoredCandidate 单次打分中的候选行；分数只在同一次打分内可比
type ScoredCandidate struct {
	Row   ReferenceRow `json:"row"`
	Score float64      `json:"score"`
	Rank  int          `json:"rank"`
}

// ExchangeRate USD -> 本地货币汇率
type ExchangeRate struct {
	Value     float64   `json:"value" example:"5.2"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source" example:"awesomeapi"`
	Stale     bool      `json:"stale,omitempty"` // 所有来源失败时返回的旧值
}

// ImageSource 解析后的图片来源
type ImageSource struct {
	Ref         string `json:"ref"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	DataURI     string `json:"data_uri,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Reference 选中的参考行及其图片
type Reference struct {
	Description string        `json:"description"`
	Score       float64       `json:"score"`
	Rank        int           `json:"rank"`
	Images      []ImageSource `json:"images,omitempty"`
}

// AskResult 一次提问的完整结果
type AskResult struct {
	RequestID  string        `json:"request_id"`
	Question   string        `json:"question"`
	Answer     string        `json:"answer"`     // 已附加本地货币换算
	RawAnswer  string        `json:"raw_answer"` // 模型原始回答
	Rate       *ExchangeRate `json:"rate"`
	Similarity string        `json:"similarity" example:"embedding"` // embedding / lexical
	References []Reference   `json:"references"`
	Notes      []string      `json:"notes,omitempty"`
}
