package utils

import (
	"errors"

	"plasprint_ai/models"
)

// ErrorCode 将服务层错误映射为响应码
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return models.CodeSuccess
	case errors.Is(err, models.ErrUnknownSheet):
		return models.CodeUnknownSheet
	case errors.Is(err, models.ErrRateUnavailable):
		return models.CodeRateUnavailable
	case errors.Is(err, models.ErrImageRefRejected):
		return models.CodeInvalidParams
	case errors.Is(err, models.ErrImageNotFound):
		return models.CodeImageNotFound
	case errors.Is(err, models.ErrLLMUnavailable):
		return models.CodeThirdPartyAPIError
	case errors.Is(err, models.ErrDatabase):
		return models.CodeDatabaseError
	default:
		return models.CodeServerError
	}
}
