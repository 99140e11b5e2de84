package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/swaggo/swag" // 导入 swag

	"plasprint_ai/config"
	"plasprint_ai/db"
	_ "plasprint_ai/docs" // 导入 swagger 文档
	"plasprint_ai/handlers"
	"plasprint_ai/logger"
	"plasprint_ai/repository"
	"plasprint_ai/services"
)

func main() {
	cfg := config.Load()

	// 初始化日志系统
	if err := logger.Init(cfg); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	logger.Info("日志系统初始化成功", "level", cfg.Log.Level, "format", cfg.Log.Format, "output", cfg.Log.Output)

	if err := db.InitMySQLWithConfig(cfg); err != nil {
		logger.Error("初始化MySQL失败", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("MySQL连接成功",
		"max_open_conns", cfg.DB.MaxOpenConns,
		"max_idle_conns", cfg.DB.MaxIdleConns,
		"conn_max_lifetime", cfg.DB.ConnMaxLifetime)

	// 汇率存储：配置了 Redis 则多实例共享，否则使用进程内存
	var store services.QuoteStore
	if cfg.Rate.RedisAddr != "" {
		redisStore, err := services.NewRedisQuoteStore(services.RedisConfig{
			Addr:     cfg.Rate.RedisAddr,
			Password: cfg.Rate.RedisPassword,
			DB:       cfg.Rate.RedisDB,
			Key:      cfg.Rate.RedisKey,
		})
		if err != nil {
			logger.Warn("Redis不可用，汇率缓存改用进程内存", "addr", cfg.Rate.RedisAddr, "error", err)
		} else {
			defer redisStore.Close()
			store = redisStore
			logger.Info("Redis连接成功", "addr", cfg.Rate.RedisAddr, "key", cfg.Rate.RedisKey)
		}
	}

	var embedder services.Embedder
	if cfg.SiliconFlow.EmbeddingOn {
		embedder = services.NewEmbeddingService(cfg)
	} else {
		logger.Info("向量服务已关闭，相关性只使用词汇相似度")
	}

	sheets := services.NewSheetService(repository.NewSheetRepository(db.DB), cfg)
	rates := services.NewRateResolverFromConfig(cfg, store)
	images := services.NewHTTPImageFetcher(time.Duration(cfg.Images.TimeoutSec)*time.Second, cfg.Images.MaxBytes)

	ask := services.NewAskService(services.AskDeps{
		Sheets:    sheets,
		LLM:       services.NewLLMService(cfg),
		Rates:     rates,
		Annotator: services.NewCurrencyAnnotator(cfg.Rate.CurrencyPrefix, cfg.Rate.Disclaimer),
		Scorer:    services.NewRelevanceScorer(embedder, services.NewScoringPolicy(cfg)),
		Images:    images,
		SplitMode: cfg.Images.SplitMode,
		MaxTokens: cfg.SiliconFlow.MaxTokenLength,
		Tokens:    services.NewTokenCounter(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handlers.RegisterRoutes(r, &handlers.Deps{
		Ask:    ask,
		Sheets: sheets,
		Rates:  rates,
		Images: images,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("服务器启动", "address", serverAddr, "relevance_mode", cfg.Relevance.Mode)
	logger.Info("Swagger文档可访问", "url", fmt.Sprintf("http://%s/swagger/index.html", serverAddr))
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, r))
}
