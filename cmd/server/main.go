package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raffleri/raffleri/internal/collector"
	"github.com/raffleri/raffleri/internal/config"
	"github.com/raffleri/raffleri/internal/db"
	"github.com/raffleri/raffleri/internal/httpapi"
	"github.com/raffleri/raffleri/internal/store/rabbitmq"
	"github.com/raffleri/raffleri/internal/store/redisstore"
	"github.com/raffleri/raffleri/internal/stream"
	"github.com/raffleri/raffleri/internal/youtube"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit connect: %v", err)
	}
	defer rabbit.Close()

	yt := youtube.NewClient(cfg.YouTubeAPIKey)
	streams := stream.NewRepo(gdb)
	col := collector.New(streams, yt)

	r := httpapi.NewRouter(gdb, cfg, rds, rabbit, yt, col)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	col.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
