// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bright-starts-go/internal/config"
	"bright-starts-go/internal/handler"
	"bright-starts-go/internal/middleware"
	"bright-starts-go/internal/model"
	"bright-starts-go/internal/realtime"
	"bright-starts-go/internal/repository"
	"bright-starts-go/internal/service"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/database"
	"bright-starts-go/pkg/es"
	"bright-starts-go/pkg/gemini"
	"bright-starts-go/pkg/kafka"
	"bright-starts-go/pkg/log"
	"bright-starts-go/pkg/storage"
	"bright-starts-go/pkg/tasks"
	"bright-starts-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}, &model.Post{}, &model.Comment{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化进程内缓存及其后台清理
	memCache := cache.NewMemoryCache(time.Duration(cfg.Cache.DefaultTTLMinutes) * time.Minute)
	cleanupInterval := time.Duration(cfg.Cache.CleanupIntervalMinutes) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	stopCacheCleanup := memCache.StartCleanupLoop(cleanupInterval)

	// 5. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	postRepository := repository.NewPostRepository(database.DB)
	commentRepository := repository.NewCommentRepository(database.DB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	geminiClient, err := gemini.NewClient(context.Background(), cfg.Gemini)
	if err != nil {
		log.Fatal("初始化 Gemini 客户端失败", err)
	}
	feedHub := realtime.NewHub()
	userService := service.NewUserService(userRepository, postRepository, jwtManager, memCache)
	assistantService := service.NewAssistantService(cfg.Assistant, userRepository, commentRepository, geminiClient, memCache, feedHub)
	postService := service.NewPostService(
		postRepository,
		commentRepository,
		userRepository,
		memCache,
		&kafkaPublisher{},
		&esIndexer{indexName: cfg.Elasticsearch.IndexName},
		assistantService,
		feedHub,
	)

	// 7. 启动后台 Kafka 消费者：帖子创建事件在这里交给 AI 响应器
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, assistantService)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)
			users.GET("/profile/:username", handler.NewUserHandler(userService).GetPublicProfile)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Post 路由组：读公开，写需要认证
		postHandler := handler.NewPostHandler(postService)
		posts := apiV1.Group("/posts")
		{
			posts.GET("", postHandler.GetFeed)
			posts.GET("/:postId", postHandler.GetPost)
		}
		postsAuthed := apiV1.Group("/posts")
		postsAuthed.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			postsAuthed.POST("", postHandler.CreatePost)
			postsAuthed.POST("/:postId/comments", postHandler.AddComment)
		}

		// Search 路由组
		search := apiV1.Group("/search")
		{
			search.GET("/posts", postHandler.SearchPosts)
		}

		// AI 助教路由组
		assistantHandler := handler.NewAssistantHandler(assistantService)
		ai := apiV1.Group("/ai")
		{
			ai.GET("/profile", assistantHandler.GetProfile)
		}
		aiAuthed := apiV1.Group("/ai")
		aiAuthed.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			aiAuthed.POST("/suggestions", assistantHandler.SuggestTopics)
		}

		// Media 路由组
		mediaHandler := handler.NewMediaHandler(cfg.MinIO)
		media := apiV1.Group("/media")
		{
			media.GET("/url", mediaHandler.DownloadURL)
		}
		mediaAuthed := apiV1.Group("/media")
		mediaAuthed.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			mediaAuthed.POST("", mediaHandler.Upload)
		}
	}

	// 动态流 WebSocket 订阅
	r.GET("/ws/feed", handler.NewFeedWsHandler(feedHub).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止后台组件：取消尚未触发的 AI 延迟回复，停掉缓存清理
	cancelConsumer()
	assistantService.Shutdown()
	stopCacheCleanup()

	log.Info("服务已优雅关闭")
}

// kafkaPublisher 将帖子创建事件写入 Kafka，实现 service.PostEventPublisher。
type kafkaPublisher struct{}

func (p *kafkaPublisher) PublishPostCreated(task tasks.PostCreatedTask) error {
	return kafka.ProducePostCreated(task)
}

// esIndexer 基于 Elasticsearch 实现 service.PostIndexer。
type esIndexer struct {
	indexName string
}

func (i *esIndexer) IndexPost(ctx context.Context, doc model.EsPost) error {
	return es.IndexPost(ctx, i.indexName, doc)
}

func (i *esIndexer) SearchPosts(ctx context.Context, query string, size int) ([]model.EsPost, error) {
	return es.SearchPosts(ctx, i.indexName, query, size)
}
