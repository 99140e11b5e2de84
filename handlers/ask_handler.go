package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "plasprint_ai/docs" // 导入 swagger 文档
	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/services"
	"plasprint_ai/utils"
)

// Deps 路由依赖的服务
type Deps struct {
	Ask    *services.AskService
	Sheets *services.SheetService
	Rates  *services.RateResolver
	Images *services.HTTPImageFetcher
}

// AskHandler godoc
// @Summary 提问
// @Description 根据工作表数据生成回答，附加本地货币换算，并返回相关参考行及图片
// @Tags 问答
// @Accept json
// @Produce json
// @Param request body models.AskRequest true "问题"
// @Success 200 {object} models.AskResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/ask [post]
func AskHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeInvalidParams, "请求体不是有效的JSON", map[string]interface{}{})
		return
	}
	if !utils.RequireParam(w, "question", req.Question) {
		return
	}
	if req.Mode != "" && req.Mode != services.ModeSingle && req.Mode != services.ModeMulti {
		utils.WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{
			"param": "mode",
		})
		return
	}

	result, err := d.Ask.Ask(r.Context(), req.Question, req.Mode)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, result)
}

// GetRateHandler godoc
// @Summary 获取汇率
// @Description 返回当前 USD->BRL 汇率；所有来源失败时返回上次成功的值并标记 stale
// @Tags 汇率
// @Produce json
// @Success 200 {object} models.RateResponse "成功"
// @Failure 500 {object} models.APIResponse "汇率不可用"
// @Router /api/rate [get]
func GetRateHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	rate, err := d.Rates.CurrentRate(r.Context())
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, rate)
}

// RefreshRateHandler godoc
// @Summary 刷新汇率
// @Description 使汇率缓存失效并立即重新获取
// @Tags 汇率
// @Produce json
// @Success 200 {object} models.RateResponse "成功"
// @Failure 500 {object} models.APIResponse "汇率不可用"
// @Router /api/rate/refresh [post]
func RefreshRateHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	d.Rates.Invalidate(r.Context())
	GetRateHandler(w, r, d)
}

// GetSheetHandler godoc
// @Summary 获取工作表
// @Description 返回指定工作表的全部行
// @Tags 工作表
// @Produce json
// @Param name path string true "工作表名"
// @Success 200 {object} models.SheetResponse "成功"
// @Failure 400 {object} models.APIResponse "工作表不存在"
// @Router /api/sheets/{name} [get]
func GetSheetHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	name := chi.URLParam(r, "name")
	rows, err := d.Sheets.Rows(r.Context(), name)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, rows)
}

// ReplaceSheetHandler godoc
// @Summary 覆盖工作表
// @Description 用请求体中的行整体覆盖指定工作表，并清除其缓存
// @Tags 工作表
// @Accept json
// @Produce json
// @Param name path string true "工作表名"
// @Param rows body []models.Record true "行数据"
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Router /api/sheets/{name} [put]
func ReplaceSheetHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	name := chi.URLParam(r, "name")
	var rows []models.Record
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeInvalidParams, "请求体必须是对象数组", map[string]interface{}{})
		return
	}
	if err := d.Sheets.Replace(r.Context(), name, rows); err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"sheet": name,
		"rows":  len(rows),
	})
}

// RefreshSheetsHandler godoc
// @Summary 刷新工作表缓存
// @Description 清空工作表缓存，下一次读取时重新加载
// @Tags 工作表
// @Produce json
// @Success 200 {object} models.APIResponse "成功"
// @Router /api/sheets/refresh [post]
func RefreshSheetsHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	d.Sheets.Invalidate()
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"sheets": d.Sheets.Names(),
	})
}

// GetImageHandler godoc
// @Summary 获取图片
// @Description 解析图片引用（支持 Google Drive 分享链接）并代理返回图片内容，只代理 Drive 地址和参考工作表中登记的地址
// @Tags 图片
// @Produce octet-stream
// @Param ref query string true "图片引用"
// @Success 200 {file} binary "图片"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Router /api/images [get]
func GetImageHandler(w http.ResponseWriter, r *http.Request, d *Deps) {
	ref := r.URL.Query().Get("ref")
	if !utils.RequireParam(w, "ref", ref) {
		return
	}

	imageURL := services.ResolveImageRef(ref)
	if err := d.Sheets.AllowImage(r.Context(), imageURL); err != nil {
		logger.Warn("拒绝代理图片", "ref", ref, "url", imageURL, "error", err)
		utils.HandleServiceError(w, err)
		return
	}

	data, contentType, err := d.Images.Fetch(r.Context(), imageURL)
	if err != nil {
		logger.Warn("图片代理失败", "ref", ref, "url", imageURL, "error", err)
		utils.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		logger.Warn("写入图片响应失败", "error", err)
	}
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r chi.Router, d *Deps) {
	// Swagger 文档路由
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Post("/api/ask", func(w http.ResponseWriter, r *http.Request) {
		AskHandler(w, r, d)
	})

	r.Get("/api/rate", func(w http.ResponseWriter, r *http.Request) {
		GetRateHandler(w, r, d)
	})
	r.Post("/api/rate/refresh", func(w http.ResponseWriter, r *http.Request) {
		RefreshRateHandler(w, r, d)
	})

	r.Post("/api/sheets/refresh", func(w http.ResponseWriter, r *http.Request) {
		RefreshSheetsHandler(w, r, d)
	})
	r.Get("/api/sheets/{name}", func(w http.ResponseWriter, r *http.Request) {
		GetSheetHandler(w, r, d)
	})
	r.Put("/api/sheets/{name}", func(w http.ResponseWriter, r *http.Request) {
		ReplaceSheetHandler(w, r, d)
	})

	r.Get("/api/images", func(w http.ResponseWriter, r *http.Request) {
		GetImageHandler(w, r, d)
	})
}
