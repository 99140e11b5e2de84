package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"plasprint_ai/models"
)

// WriteFormattedJSON 格式化JSON输出，使其更易读
func WriteFormattedJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ") // 使用4个空格缩进
	encoder.SetEscapeHTML(false)
	encoder.Encode(data)
}

// WriteSuccessResponse 写入成功响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteFormattedJSON(w, models.NewSuccessResponse(data))
}

// WriteErrorResponse 写入错误响应
func WriteErrorResponse(w http.ResponseWriter, code int, data interface{}) {
	WriteFormattedJSON(w, models.NewErrorResponse(code, data))
}

// WriteCustomErrorResponse 写入自定义错误消息的响应
func WriteCustomErrorResponse(w http.ResponseWriter, code int, message string, data interface{}) {
	WriteFormattedJSON(w, models.NewCustomErrorResponse(code, message, data))
}

// HandleServiceError 处理服务层错误的通用函数
func HandleServiceError(w http.ResponseWriter, err error) {
	WriteCustomErrorResponse(w, ErrorCode(err), err.Error(), map[string]interface{}{})
}

// RequireParam 验证必填参数
func RequireParam(w http.ResponseWriter, name, value string) bool {
	if strings.TrimSpace(value) == "" {
		WriteErrorResponse(w, models.CodeMissingParams, map[string]interface{}{
			"param": name,
		})
		return false
	}
	return true
}

// FormatReferences 将打分结果转换为响应格式
func FormatReferences(scored []models.ScoredCandidate) []models.Reference {
	refs := make([]models.Reference, 0, len(scored))
	for _, sc := range scored {
		refs = append(refs, models.Reference{
			Description: sc.Row.Description,
			Score:       sc.Score,
			Rank:        sc.Rank,
		})
	}
	return refs
}
