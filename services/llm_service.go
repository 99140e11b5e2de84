package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"plasprint_ai/config"
	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

const systemPrompt = `Você é o assistente técnico da PlasPrint. Responda em português do Brasil,
de forma objetiva, usando apenas as informações das planilhas fornecidas. Quando citar
valores em dólar, mantenha o formato original (por exemplo $12.50).`

// LLMService 调用 OpenAI 兼容接口（默认 SiliconFlow）生成回答
type LLMService struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func newOpenAIClient(apiKey, baseURL string, timeout time.Duration) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return openai.NewClient(opts...)
}

func NewLLMService(cfg *config.Config) *LLMService {
	timeout := time.Duration(cfg.SiliconFlow.TimeoutSec) * time.Second
	return &LLMService{
		client:  newOpenAIClient(cfg.SiliconFlow.APIKey, cfg.SiliconFlow.BaseURL, timeout),
		model:   cfg.SiliconFlow.Model,
		timeout: timeout,
	}
}

// Complete 发送提示词并返回回答文本
func (s *LLMService) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.Info("调用LLM", "model", s.model, "prompt_preview", utils.Preview(prompt, 100))
	startTime := time.Now()

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	duration := time.Since(startTime)
	if err != nil {
		logger.Error("LLM请求失败", "error", err, "duration_ms", duration.Milliseconds())
		return "", fmt.Errorf("%w: %v", models.ErrLLMUnavailable, err)
	}

	if len(completion.Choices) == 0 {
		logger.Error("API响应中没有内容", "duration_ms", duration.Milliseconds())
		return "", fmt.Errorf("%w: no completion choices returned", models.ErrLLMUnavailable)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	logger.Info("成功获取LLM响应",
		"tokens_total", completion.Usage.TotalTokens,
		"finish_reason", completion.Choices[0].FinishReason,
		"duration_ms", duration.Milliseconds(),
		"content_preview", utils.Preview(content, 200))

	return content, nil
}

// EmbeddingService 通过 OpenAI 兼容接口生成文本向量
type EmbeddingService struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewEmbeddingService(cfg *config.Config) *EmbeddingService {
	timeout := time.Duration(cfg.SiliconFlow.EmbedTimeoutSec) * time.Second
	return &EmbeddingService{
		client:  newOpenAIClient(cfg.SiliconFlow.APIKey, cfg.SiliconFlow.BaseURL, timeout),
		model:   cfg.SiliconFlow.EmbeddingModel,
		timeout: timeout,
	}
}

func (e *EmbeddingService) ModelName() string {
	return e.model
}

// Embed 生成单条文本的向量
func (e *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, models.ErrEmptyEmbedding
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
