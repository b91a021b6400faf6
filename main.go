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

	"ecommerce_recommend/cache"
	"ecommerce_recommend/config"
	"ecommerce_recommend/db"
	_ "ecommerce_recommend/docs" // 导入 swagger 文档
	"ecommerce_recommend/handlers"
	"ecommerce_recommend/logger"
	"ecommerce_recommend/repository"
	"ecommerce_recommend/scheduler"
	"ecommerce_recommend/services"
)

func main() {
	cfg := config.Load()

	// 初始化日志系统
	if err := logger.Init(cfg); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	logger.Info("日志系统初始化成功", "level", cfg.Log.Level, "format", cfg.Log.Format, "output", cfg.Log.Output)

	conn, err := db.Open(cfg)
	if err != nil {
		logger.Error("初始化MySQL失败", "error", err)
		os.Exit(1)
	}
	logger.Info("MySQL连接成功",
		"max_open_conns", cfg.DB.MaxOpenConns,
		"max_idle_conns", cfg.DB.MaxIdleConns,
		"conn_max_lifetime", cfg.DB.ConnMaxLifetime)

	// 用户推荐缓存：优先Redis，未启用时退化为进程内缓存
	ttl := time.Duration(cfg.Recommend.CacheTTLMinutes) * time.Minute
	var recCache cache.RecommendationCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ttl)
		if err != nil {
			logger.Error("初始化Redis失败", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		recCache = redisCache
		logger.Info("Redis缓存已启用", "addr", cfg.Redis.Addr, "ttl_minutes", cfg.Recommend.CacheTTLMinutes)
	} else {
		recCache = cache.NewMemoryCache(ttl)
		logger.Info("使用进程内缓存", "ttl_minutes", cfg.Recommend.CacheTTLMinutes)
	}

	svc := services.NewRecommendationService(
		repository.NewProductRepo(conn),
		repository.NewOrderRepo(conn),
		repository.NewUserRepo(conn),
		repository.NewRecommendationRepo(conn),
		recCache,
		cfg,
	)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handlers.RegisterRoutes(r, svc)

	// start cron
	scheduler.Start(cfg, svc)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("服务器启动", "address", serverAddr)
	logger.Info("Swagger文档可访问", "url", fmt.Sprintf("http://%s/swagger/index.html", serverAddr))
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port), r))
}
