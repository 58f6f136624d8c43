package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"vaanigo/internal/api"
	"vaanigo/internal/config"
	"vaanigo/internal/redis"
	"vaanigo/internal/service/chat"
	"vaanigo/internal/service/registry"
	"vaanigo/internal/service/upload"
	"vaanigo/internal/storage"
	"vaanigo/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("VAANI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	var db *sql.DB
	if dbType := os.Getenv("VAANI_DB"); dbType != "" {
		db, err = storage.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
	} else {
		log.Printf("VAANI_DB not set, upload records will not be persisted")
	}

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	store, err := storage.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}
	if store == nil {
		log.Printf("no object store configured, uploads go to local disk")
	}

	reg := registry.New(cfg)
	log.Printf("configured models: %v", reg.Models())

	minWorkers := cfg.BasicConfig.MinWorkers
	if minWorkers <= 0 {
		minWorkers = 4
	}
	maxWorkers := cfg.BasicConfig.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 64
	}
	pool := worker.NewPool(minWorkers, maxWorkers,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute)

	direct := chat.NewDirectDispatcher(reg, pool)
	agent := chat.NewAgentDispatcher(reg, pool, nil)
	research := chat.NewResearchDispatcher(reg, pool, nil)
	streamer := chat.NewStreamer(direct, agent, research)
	var putter upload.ObjectPutter
	if store != nil {
		putter = store
	}
	uploads := upload.NewService(putter, cfg.BasicConfig.UploadDir, db, rdb)

	deployment := cfg.BasicConfig.Deployment
	if deployment == "" {
		deployment = "vaani api"
	}
	environment := cfg.BasicConfig.Environment
	if environment == "" {
		environment = "development"
	}

	handlers := api.NewHandler(reg, direct, agent, research, streamer, uploads, rdb, deployment, environment)

	router := gin.Default()
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Content-Type", "Authorization", "Cookie", "Accept"}
	router.Use(cors.New(corsCfg))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
