package models

import "errors"

var (
	// ErrUnknownSheet 请求的工作表未在配置中声明
	ErrUnknownSheet = errors.New("unknown sheet")

	// ErrRateUnavailable 所有汇率来源失败且没有缓存
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrEmptyEmbedding 向量服务返回空结果
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrImageNotFound 图片引用无法解析或下载
	ErrImageNotFound = errors.New("image not found")

	// ErrImageRefRejected 图片地址不在允许代理的范围内
	ErrImageRefRejected = errors.New("image ref not allowed")

	// ErrDatabase 数据库读写失败
	ErrDatabase = errors.New("database error")

	// ErrLLMUnavailable 生成式模型调用失败
	ErrLLMUnavailable = errors.New("llm call failed")
)
