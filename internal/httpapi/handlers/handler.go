package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/collector"
	"github.com/raffleri/raffleri/internal/common"
	"github.com/raffleri/raffleri/internal/config"
	"github.com/raffleri/raffleri/internal/raffle"
	"github.com/raffleri/raffleri/internal/store/rabbitmq"
	"github.com/raffleri/raffleri/internal/store/redisstore"
	"github.com/raffleri/raffleri/internal/stream"
	"github.com/raffleri/raffleri/internal/youtube"
	"gorm.io/gorm"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Redis     *redisstore.Store
	Rabbit    *rabbitmq.Publisher
	YouTube   *youtube.Client
	Collector *collector.Collector
	Streams   *stream.Repo
	RaffleSvc *raffle.Service
}

// NewHandler wires the request-facing services. The youtube client and
// collector are constructed once at process start and passed in, never
// reached through globals.
func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher, yt *youtube.Client, col *collector.Collector) *Handler {
	streams := stream.NewRepo(db)
	raffleSvc := raffle.NewService(raffle.NewRepo(db), streams, cfg.MaxEntriesPerUser)

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Redis:     rds,
		Rabbit:    rabbit,
		YouTube:   yt,
		Collector: col,
		Streams:   streams,
		RaffleSvc: raffleSvc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func ok(c *gin.Context, data any) {
	common.OK(c, data)
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	common.Fail(c, httpStatus, code, msg)
}
