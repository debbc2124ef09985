package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/p2ms-forensics/internal/bitcoin"
	"github.com/rawblock/p2ms-forensics/internal/config"
	"github.com/rawblock/p2ms-forensics/internal/pipeline"
	"github.com/rawblock/p2ms-forensics/internal/statusapi"
	"github.com/rawblock/p2ms-forensics/internal/store"
)

func main() {
	log.Println("Starting P2MS data-carrier classifier...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: store: %v", err)
	}
	defer st.Close()
	if err := st.InitSchema(); err != nil {
		log.Fatalf("FATAL: store schema: %v", err)
	}

	node, err := bitcoin.NewClient(bitcoin.Config{
		Host:        cfg.NodeHost,
		User:        cfg.NodeUser,
		Pass:        cfg.NodePass,
		Timeout:     time.Duration(cfg.NodeTimeoutSec) * time.Second,
		MaxRetries:  cfg.NodeMaxRetries,
		Concurrency: cfg.NodeConcurrency,
	})
	if err != nil {
		log.Fatalf("FATAL: bitcoin node client: %v", err)
	}
	defer node.Shutdown()

	hub := statusapi.NewHub()
	go hub.Run()
	reporter := statusapi.NewReporter(hub, uuid.New())
	if cfg.StatusAPIPort != "" {
		handler := statusapi.NewHandler(st, hub, reporter)
		router := statusapi.SetupRouter(handler)
		go func() {
			log.Printf("[StatusAPI] listening on :%s", cfg.StatusAPIPort)
			if err := router.Run(":" + cfg.StatusAPIPort); err != nil {
				log.Printf("[StatusAPI] server stopped: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := pipeline.NewController(cfg, st, node, reporter)
	if err := controller.Run(ctx); err != nil {
		log.Fatalf("FATAL: pipeline: %v", err)
	}
}
