package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"plasprint_ai/logger"
	"plasprint_ai/models"
)

// SheetRepository 从 MySQL 的 sheet_rows 表读取工作表数据
//
//	CREATE TABLE sheet_rows (
//	    sheet     VARCHAR(64) NOT NULL,
//	    row_index INT         NOT NULL,
//	    data      JSON        NOT NULL,
//	    PRIMARY KEY (sheet, row_index)
//	);
type SheetRepository struct {
	db *sql.DB
}

func NewSheetRepository(conn *sql.DB) *SheetRepository {
	return &SheetRepository{db: conn}
}

// ListRows 按行号顺序读取一个工作表的全部记录
func (r *SheetRepository) ListRows(ctx context.Context, sheet string) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT row_index, data FROM sheet_rows WHERE sheet = ? ORDER BY row_index`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query sheet %s: %w: %w", sheet, models.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var (
			idx int
			raw []byte
		)
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, fmt.Errorf("scan sheet %s: %w: %w", sheet, models.ErrDatabase, err)
		}
		rec := models.Record{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			// 单行损坏不影响整个工作表
			logger.Warn("跳过无法解析的行", "sheet", sheet, "row_index", idx, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheet %s: %w: %w", sheet, models.ErrDatabase, err)
	}
	return out, nil
}

// ReplaceRows 用新数据整体覆盖一个工作表（导入工具使用）
func (r *SheetRepository) ReplaceRows(ctx context.Context, sheet string, records []models.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w: %w", models.ErrDatabase, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("clear sheet %s: %w: %w", sheet, models.ErrDatabase, err)
	}
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_rows (sheet, row_index, data) VALUES (?, ?, ?)`, sheet, i, raw); err != nil {
			return fmt.Errorf("insert row %d: %w: %w", i, models.ErrDatabase, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sheet %s: %w: %w", sheet, models.ErrDatabase, err)
	}
	return nil
}
