package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"NioBoard/global"
	"NioBoard/logger"
	"NioBoard/middleware"
	midsec "NioBoard/middleware/security"
	"NioBoard/module/board"
	"NioBoard/module/message"
	"NioBoard/module/user"
	"NioBoard/service/chat"
	"NioBoard/service/mgo"
	"NioBoard/service/natsx"
	redisstore "NioBoard/service/storage/redis"
	"NioBoard/tools/ids"
	"NioBoard/tools/security"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := global.Load(*configPath)
	if err != nil {
		logger.Errorf("[boot] config: %v", err)
		os.Exit(1)
	}

	ids.SetNodeID(cfg.Server.NodeID)
	jwtOpts := security.Options{Secret: []byte(cfg.JWT.Secret), TTL: cfg.JWT.TTL}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgo.Init(ctx, cfg.Mongo); err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}
	defer mgo.Close(context.Background())
	db := mgo.GetDB()
	if err := mgo.EnsureIndexes(ctx, db); err != nil {
		logger.Errorf("[boot] indexes: %v", err)
		os.Exit(1)
	}

	if err := redisstore.Init(ctx, cfg.Redis); err != nil {
		logger.Errorf("[boot] redis: %v", err)
		os.Exit(1)
	}
	defer redisstore.Close()

	var bridge *natsx.Bridge
	if cfg.Nats.Enabled {
		nodeID := fmt.Sprintf("node-%d", cfg.Server.NodeID)
		bridge, err = natsx.Connect(cfg.Nats.URL, cfg.Nats.Subject, nodeID)
		if err != nil {
			logger.Errorf("[boot] nats: %v", err)
			os.Exit(1)
		}
		defer bridge.Close()
	}

	// Services, leaf to root.
	boardSvc := board.NewService(board.NewMongoRepo(db))
	userSvc := user.NewService(user.NewMongoRepo(db), boardSvc, jwtOpts)
	msgSvc := message.NewService(message.NewMongoRepo(db), boardSvc, cfg.Retention.Days)

	gateway := chat.NewServer(chat.Config{
		JWT:    jwtOpts,
		NodeID: fmt.Sprintf("node-%d", cfg.Server.NodeID),
	}, boardSvc, bridge)
	msgSvc.SetNotifier(gateway)
	if err := gateway.StartBridge(); err != nil {
		logger.Errorf("[boot] nats subscribe: %v", err)
		os.Exit(1)
	}

	// Seed catalog and bootstrap admin.
	if err := boardSvc.EnsureModules(ctx, cfg.Seed.Modules); err != nil {
		logger.Errorf("[boot] seed modules: %v", err)
		os.Exit(1)
	}
	if err := userSvc.EnsureAdmin(ctx, cfg.Seed.AdminUsername, cfg.Seed.AdminPassword); err != nil {
		logger.Errorf("[boot] seed admin: %v", err)
		os.Exit(1)
	}

	msgSvc.StartSweeper(ctx)

	// HTTP surface.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(cfg.Server.CORSOrigin))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/ws", gateway.HandleWS)

	api := r.Group("/api")
	userHandler := user.NewHandler(userSvc)
	userHandler.RegisterAuthRoutes(api)

	authed := api.Group("")
	authed.Use(midsec.Middleware(jwtOpts))
	userHandler.RegisterRoutes(authed)
	board.NewHandler(boardSvc).RegisterRoutes(authed)
	message.NewHandler(msgSvc).RegisterRoutes(authed)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Infof("[boot] listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[boot] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
}
