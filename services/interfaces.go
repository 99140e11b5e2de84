package services

import (
	"context"

	"plasprint_ai/models"
)

// SheetSource 表格数据源接口
type SheetSource interface {
	// 按行号顺序读取工作表
	ListRows(ctx context.Context, sheet string) ([]models.Record, error)

	// 整体覆盖工作表
	ReplaceRows(ctx context.Context, sheet string, records []models.Record) error
}

// Completer 生成式文本服务接口
type Completer interface {
	// 输入提示词，返回回答文本
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder 向量服务接口
type Embedder interface {
	// 返回文本向量；服务不可用时返回错误
	Embed(ctx context.Context, text string) ([]float32, error)

	// 模型名，用于向量缓存键
	ModelName() string
}

// RateSource 单个汇率来源
type RateSource interface {
	Name() string

	// 返回 1 USD 对应的本地货币数
	FetchRate(ctx context.Context) (float64, error)
}

// QuoteStore 汇率持久化接口（进程内存或 Redis）
type QuoteStore interface {
	Load(ctx context.Context) (models.ExchangeRate, bool, error)
	Save(ctx context.Context, rate models.ExchangeRate) error
}

// ImageFetcher 图片下载接口
type ImageFetcher interface {
	// 逐个下载，单个失败只记录在对应结果中
	FetchAll(ctx context.Context, sources []models.ImageSource) []models.ImageSource
}
