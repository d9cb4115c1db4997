package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/collector"
	"github.com/raffleri/raffleri/internal/common"
	"github.com/raffleri/raffleri/internal/config"
	"github.com/raffleri/raffleri/internal/httpapi/handlers"
	"github.com/raffleri/raffleri/internal/httpapi/middleware"
	"github.com/raffleri/raffleri/internal/store/rabbitmq"
	"github.com/raffleri/raffleri/internal/store/redisstore"
	"github.com/raffleri/raffleri/internal/youtube"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher, yt *youtube.Client, col *collector.Collector) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, rabbit, yt, col)

	r.GET("/ping", h.Ping)
	r.POST("/login", h.Login)

	// status is the UI's polling channel; it stays open
	r.GET("/collector/status", h.CollectorStatus)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/collector/start", h.StartCollector)
	authGroup.POST("/collector/stop", h.StopCollector)
	authGroup.GET("/streams/live", h.LiveStreams)
	authGroup.GET("/channel/stats", h.ChannelStats)
	authGroup.POST("/raffle/pick", h.PickWinner)
	authGroup.POST("/raffle/draws", h.CreateDraw)
	authGroup.GET("/raffle/draws/:draw_id", h.GetDraw)

	return r
}
