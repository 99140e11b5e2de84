package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
	"sync"
	"unicode/utf8"

	"plasprint_ai/config"
	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

const (
	ModeSingle = "single"
	ModeMulti  = "multi"

	SimilarityEmbedding = "embedding"
	SimilarityLexical   = "lexical"
)

// ScoringPolicy 打分的阈值与关键词加减分规则
type ScoringPolicy struct {
	Mode            string
	SingleThreshold float64
	MultiThreshold  float64
	MultiTopK       int
	MinLength       int
	ShortPenalty    float64
	DomainPenalty   float64
	Countries       []config.KeywordGroup
	Domain          []string
	Brands          config.KeywordGroup
}

// NewScoringPolicy 从配置构建打分策略，配置需已调用 ApplyDefaults
func NewScoringPolicy(cfg *config.Config) ScoringPolicy {
	r := cfg.Relevance
	return ScoringPolicy{
		Mode:            r.Mode,
		SingleThreshold: r.SingleThreshold,
		MultiThreshold:  r.MultiThreshold,
		MultiTopK:       r.MultiTopK,
		MinLength:       r.MinLength,
		ShortPenalty:    r.ShortPenalty,
		DomainPenalty:   r.DomainPenalty,
		Countries:       r.Countries,
		Domain:          r.Domain,
		Brands:          r.Brands,
	}
}

// thresholdAndK 返回给定模式下的最低分与最多选择数
func (p ScoringPolicy) thresholdAndK(mode string) (float64, int) {
	if mode == "" {
		mode = p.Mode
	}
	if mode == ModeSingle {
		return p.SingleThreshold, 1
	}
	return p.MultiThreshold, p.MultiTopK
}

// questionCountry 返回问题中第一个出现的国家关键词组
func (p ScoringPolicy) questionCountry(question string) *config.KeywordGroup {
	normalized := utils.Normalize(question)
	for i := range p.Countries {
		if mentionsAny(normalized, p.Countries[i].Synonyms) {
			return &p.Countries[i]
		}
	}
	return nil
}

// adjust 对单个候选应用关键词加减分
func (p ScoringPolicy) adjust(score float64, description string, country *config.KeywordGroup) float64 {
	normalized := utils.Normalize(description)

	if country != nil {
		if mentionsAny(normalized, country.Synonyms) {
			score += country.Boost
		} else {
			score -= country.Boost
		}
	}
	if !mentionsAny(normalized, p.Domain) {
		score -= p.DomainPenalty
	}
	if utf8.RuneCountInString(description) < p.MinLength {
		score -= p.ShortPenalty
	}
	if mentionsAny(normalized, p.Brands.Synonyms) {
		score += p.Brands.Boost
	}
	return score
}

func mentionsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if utils.ContainsKeyword(normalized, kw) {
			return true
		}
	}
	return false
}

// RelevanceScorer 为回答挑选最相关的参考行
type RelevanceScorer struct {
	embedder Embedder // 为 nil 时只用词汇相似度
	policy   ScoringPolicy
	cache    *embedCache
}

func NewRelevanceScorer(embedder Embedder, policy ScoringPolicy) *RelevanceScorer {
	return &RelevanceScorer{
		embedder: embedder,
		policy:   policy,
		cache:    newEmbedCache(),
	}
}

// Score 对全部候选打分并排序，返回排序结果与使用的相似度方式
func (s *RelevanceScorer) Score(ctx context.Context, answer string, rows []models.ReferenceRow, question string) ([]models.ScoredCandidate, string) {
	candidates := make([]models.ScoredCandidate, 0, len(rows))
	for _, row := range rows {
		if utils.IsBlank(row.Description) {
			continue
		}
		candidates = append(candidates, models.ScoredCandidate{Row: row})
	}
	if len(candidates) == 0 {
		return candidates, SimilarityLexical
	}

	mode := SimilarityLexical
	var answerVec []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, answer)
		switch {
		case err != nil:
			logger.Warn("回答向量获取失败，改用词汇相似度", "error", err)
		case len(vec) == 0:
			logger.Warn("回答向量为空，改用词汇相似度")
		default:
			answerVec = vec
			mode = SimilarityEmbedding
		}
	}

	country := s.policy.questionCountry(question)
	answerTokens := utils.Tokenize(answer)

	for i := range candidates {
		desc := candidates[i].Row.Description
		if mode == SimilarityEmbedding {
			vec, err := s.descriptionVector(ctx, desc)
			if err != nil {
				logger.Warn("候选向量获取失败，跳过加减分", "description", utils.Preview(desc, 60), "error", err)
				continue
			}
			candidates[i].Score = cosineSimilarity(answerVec, vec)
		} else {
			candidates[i].Score = diceCoefficient(answerTokens, utils.Tokenize(desc))
		}
		candidates[i].Score = s.policy.adjust(candidates[i].Score, desc, country)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates, mode
}

// ScoreAndSelect 打分后按模式筛选：最高分低于阈值时返回空；
// single 模式只取第一名，multi 模式取不低于阈值的前 K 名
func (s *RelevanceScorer) ScoreAndSelect(ctx context.Context, answer string, rows []models.ReferenceRow, question, selectMode string) ([]models.ScoredCandidate, string) {
	ranked, similarity := s.Score(ctx, answer, rows, question)
	return Select(ranked, s.policy, selectMode), similarity
}

// Select 从已排序的候选中按阈值和数量筛选
func Select(ranked []models.ScoredCandidate, policy ScoringPolicy, mode string) []models.ScoredCandidate {
	threshold, k := policy.thresholdAndK(mode)
	selected := make([]models.ScoredCandidate, 0, k)
	if len(ranked) == 0 || ranked[0].Score < threshold {
		return selected
	}
	for _, c := range ranked {
		if len(selected) >= k || c.Score < threshold {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

func (s *RelevanceScorer) descriptionVector(ctx context.Context, text string) ([]float32, error) {
	key := embedCacheKey(s.embedder.ModelName(), text)
	if vec, ok := s.cache.get(key); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, models.ErrEmptyEmbedding
	}
	s.cache.set(key, vec)
	return vec, nil
}

// cosineSimilarity 余弦相似度；任一向量范数为 0 或维度不同时为 0
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// diceCoefficient 两个词集合的 Dice 系数，结果在 [0,1]
func diceCoefficient(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// embedCache 描述文本向量的进程内缓存
type embedCache struct {
	mu   sync.RWMutex
	data map[string][]float32
}

func newEmbedCache() *embedCache {
	return &embedCache{data: make(map[string][]float32)}
}

func embedCacheKey(model, text string) string {
	sum := sha1.Sum([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}

func (c *embedCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.data[key]
	return vec, ok
}

func (c *embedCache) set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = vec
}
