package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

// AskService 串联一次提问：读取工作表 -> 生成回答 -> 换算金额 -> 挑选参考行 -> 获取图片
type AskService struct {
	sheets    *SheetService
	llm       Completer
	rates     *RateResolver
	annotator *CurrencyAnnotator
	scorer    *RelevanceScorer
	images    ImageFetcher
	splitMode string
	maxTokens int
	tokens    TokenCounter
}

// AskDeps AskService 的依赖
type AskDeps struct {
	Sheets    *SheetService
	LLM       Completer
	Rates     *RateResolver
	Annotator *CurrencyAnnotator
	Scorer    *RelevanceScorer
	Images    ImageFetcher
	SplitMode string
	MaxTokens int
	Tokens    TokenCounter // 为空时使用字数估算
}

func NewAskService(d AskDeps) *AskService {
	return &AskService{
		sheets:    d.Sheets,
		llm:       d.LLM,
		rates:     d.Rates,
		annotator: d.Annotator,
		scorer:    d.Scorer,
		images:    d.Images,
		splitMode: d.SplitMode,
		maxTokens: d.MaxTokens,
		tokens:    d.Tokens,
	}
}

// Ask 回答一个问题。只有工作表读取与模型调用失败会返回错误，
// 汇率、向量、图片等环节失败时降级并写入 Notes。
func (s *AskService) Ask(ctx context.Context, question, mode string) (*models.AskResult, error) {
	question = strings.TrimSpace(question)
	result := &models.AskResult{
		RequestID:  uuid.NewString(),
		Question:   question,
		References: []models.Reference{},
	}
	log := logger.With("request_id", result.RequestID)
	startTime := time.Now()

	sheets, err := s.sheets.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sheets: %w", err)
	}

	prompt := buildAskPrompt(question, s.sheets.Names(), sheets, s.maxTokens, s.tokens)
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		log.Error("生成回答失败", "error", err)
		return nil, err
	}
	result.RawAnswer = answer
	result.Answer = answer

	if rate, ok := s.rates.Rate(ctx); ok {
		result.Rate = &rate
		result.Answer = s.annotator.Annotate(answer, &rate)
		if rate.Stale {
			result.Notes = append(result.Notes, "cotação desatualizada: fontes indisponíveis")
		}
	} else {
		result.Notes = append(result.Notes, "cotação indisponível: valores em dólar sem conversão")
	}

	refRows, err := s.sheets.ReferenceRows(ctx)
	if err != nil {
		log.Warn("读取参考数据失败", "error", err)
		result.Similarity = SimilarityLexical
		result.Notes = append(result.Notes, "referências indisponíveis")
		return result, nil
	}

	selected, similarity := s.scorer.ScoreAndSelect(ctx, answer, refRows, question, mode)
	result.Similarity = similarity
	if similarity == SimilarityLexical && s.scorer.embedder != nil && len(refRows) > 0 {
		result.Notes = append(result.Notes, "embeddings indisponíveis: similaridade lexical")
	}

	result.References = utils.FormatReferences(selected)
	for i, c := range selected {
		if sources := ResolveImageSources(c.Row.ImageRefs, s.splitMode); len(sources) > 0 {
			result.References[i].Images = s.images.FetchAll(ctx, sources)
		}
	}

	log.Info("问题处理完成",
		"references", len(result.References),
		"similarity", result.Similarity,
		"rate_available", result.Rate != nil,
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, nil
}
