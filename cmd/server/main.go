package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myltx/nestbase-go/internal/account"
	"github.com/myltx/nestbase-go/internal/authz"
	"github.com/myltx/nestbase-go/internal/invalidation"
	"github.com/myltx/nestbase-go/internal/menu"
	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/internal/permission"
	"github.com/myltx/nestbase-go/internal/role"
	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/auth"
	"github.com/myltx/nestbase-go/pkg/broadcast"
	"github.com/myltx/nestbase-go/pkg/cache"
	"github.com/myltx/nestbase-go/pkg/config"
	"github.com/myltx/nestbase-go/pkg/database"
	"github.com/myltx/nestbase-go/pkg/logger"
	"github.com/myltx/nestbase-go/pkg/middleware"
	"github.com/myltx/nestbase-go/pkg/ratelimit"
	pkgregistry "github.com/myltx/nestbase-go/pkg/registry"
)

const serviceName = "authz-service"

func main() {
	// 加载配置
	if err := config.Init(""); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	db := database.Get()

	if err := db.AutoMigrate(
		&model.User{}, &model.Role{}, &model.Permission{}, &model.Menu{},
		&model.UserRole{}, &model.RoleMenu{}, &model.RolePermission{},
	); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 缓存后端在启动时一次性选定
	c := cache.New(&cfg.Redis, &cfg.Cache)

	// 解析器
	st := store.New(db)
	menuResolver := menu.NewResolver(st, c, cfg.Cache.RoutesTTLOrDefault())
	permResolver := permission.NewResolver(st, c, cfg.Cache.PermissionsTTLOrDefault())

	// 集群失效广播（可选）
	addr := cfg.Server.HTTP.Addr()
	var caster *broadcast.Broadcaster
	if cfg.Broadcast.Enabled {
		nodeID := cfg.Broadcast.NodeID
		if nodeID == "" {
			nodeID = serviceName + "-" + uuid.NewString()[:8]
		}
		reg := pkgregistry.NewCacheRegistry(c)
		if err := reg.Register(pkgregistry.BuildService(serviceName, cfg.App.Version, nodeID, addr)); err != nil {
			logger.Warn("节点注册失败，失效广播不可用", zap.Error(err))
		} else {
			caster = broadcast.New(serviceName, nodeID, reg)
			logger.Info("失效广播已启用", zap.String("nodeId", nodeID))
		}
	}

	notifier := invalidation.NewNotifier(menuResolver, permResolver, caster)

	// 守卫与限流
	guard := authz.NewGuard(st, permResolver, ratelimit.New())

	// JWT
	jwtManager := auth.NewJWTManager(&cfg.JWT)

	// Fiber应用
	app := fiber.New()
	app.Use(middleware.Recovery())
	app.Use(middleware.Cors())
	app.Use(middleware.RequestID())
	app.Use(middleware.ErrorHandler())
	app.Use(middleware.JWTAuth(jwtManager))

	// 健康检查
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(200).JSON(fiber.Map{
			"status":  "healthy",
			"service": serviceName,
			"cache":   c.Degraded(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// 集群广播接收端
	if caster != nil {
		app.Post("/_cluster/broadcast", caster.FiberHandler())
	}

	// 业务路由
	api := app.Group("/api")
	account.NewController(db, permResolver).RegisterRoutes(api, guard)
	menu.NewController(menu.NewRepository(db), menuResolver, notifier).RegisterRoutes(api, guard)
	role.NewController(role.NewRepository(db), role.NewAssignmentRepository(db), notifier).RegisterRoutes(api, guard)

	// 启动
	go func() {
		logger.Info("服务启动", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务正在退出...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("服务退出异常", zap.Error(err))
	}
}
