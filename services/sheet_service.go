package services

import (
	"context"
	"fmt"
	"sync"

	"plasprint_ai/config"
	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

// SheetService 读取并缓存工作表；缓存在 Invalidate 前一直有效
type SheetService struct {
	source      SheetSource
	names       []string
	reference   string
	descColumn  string
	imageColumn string
	splitMode   string

	mu    sync.RWMutex
	cache map[string][]models.Record
}

func NewSheetService(source SheetSource, cfg *config.Config) *SheetService {
	return &SheetService{
		source:      source,
		names:       cfg.Sheets.Names,
		reference:   cfg.Sheets.ReferenceSheet,
		descColumn:  cfg.Sheets.DescriptionColumn,
		imageColumn: cfg.Sheets.ImageColumn,
		splitMode:   cfg.Images.SplitMode,
		cache:       make(map[string][]models.Record),
	}
}

// Names 返回已配置的工作表名
func (s *SheetService) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *SheetService) known(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Rows 返回一个工作表的全部记录，未配置的工作表返回 ErrUnknownSheet
func (s *SheetService) Rows(ctx context.Context, name string) ([]models.Record, error) {
	if !s.known(name) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSheet, name)
	}

	s.mu.RLock()
	rows, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return rows, nil
	}

	rows, err := s.source.ListRows(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load sheet %s: %w", name, err)
	}
	logger.Info("工作表已加载", "sheet", name, "rows", len(rows))

	s.mu.Lock()
	s.cache[name] = rows
	s.mu.Unlock()
	return rows, nil
}

// All 读取全部工作表，单个工作表失败时跳过并记录日志
func (s *SheetService) All(ctx context.Context) (map[string][]models.Record, error) {
	out := make(map[string][]models.Record, len(s.names))
	var lastErr error
	for _, name := range s.names {
		rows, err := s.Rows(ctx, name)
		if err != nil {
			logger.Warn("读取工作表失败", "sheet", name, "error", err)
			lastErr = err
			continue
		}
		out[name] = rows
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// ReferenceRows 从参考工作表提取描述与图片列
func (s *SheetService) ReferenceRows(ctx context.Context) ([]models.ReferenceRow, error) {
	rows, err := s.Rows(ctx, s.reference)
	if err != nil {
		return nil, err
	}
	return ExtractReferenceRows(rows, s.descColumn, s.imageColumn), nil
}

// AllowImage 检查图片地址是否可以代理：只允许 Drive 地址和参考工作表图片列中出现过的地址
func (s *SheetService) AllowImage(ctx context.Context, imageURL string) error {
	if err := CheckImageURL(imageURL); err != nil {
		return err
	}
	if IsDriveImageURL(imageURL) {
		return nil
	}

	rows, err := s.ReferenceRows(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		for _, src := range ResolveImageSources(row.ImageRefs, s.splitMode) {
			if src.URL == imageURL {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", models.ErrImageRefRejected, imageURL)
}

// ExtractReferenceRows 把记录转换为参考行；缺列视为空值
func ExtractReferenceRows(rows []models.Record, descColumn, imageColumn string) []models.ReferenceRow {
	out := make([]models.ReferenceRow, 0, len(rows))
	for _, r := range rows {
		row := models.ReferenceRow{Description: r.Text(descColumn)}
		if img := r.Text(imageColumn); !utils.IsBlank(img) {
			row.ImageRefs = []string{img}
		}
		out = append(out, row)
	}
	return out
}

// Replace 覆盖一个工作表并清除其缓存
func (s *SheetService) Replace(ctx context.Context, name string, records []models.Record) error {
	if !s.known(name) {
		return fmt.Errorf("%w: %s", models.ErrUnknownSheet, name)
	}
	if err := s.source.ReplaceRows(ctx, name, records); err != nil {
		return fmt.Errorf("replace sheet %s: %w", name, err)
	}
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
	logger.Info("工作表已覆盖", "sheet", name, "rows", len(records))
	return nil
}

// Invalidate 清空全部缓存，下次读取时重新加载
func (s *SheetService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string][]models.Record)
	s.mu.Unlock()
	logger.Info("工作表缓存已清空")
}
