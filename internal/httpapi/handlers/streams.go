package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/youtube"
)

const (
	liveStreamsCacheTTL  = 60 * time.Second
	channelStatsCacheTTL = 5 * time.Minute
)

func (h *Handler) cachedLiveStreams(ctx context.Context, channelID string) ([]youtube.LiveStream, error) {
	key := "live_streams:" + channelID

	var cached []youtube.LiveStream
	if hit, err := h.Redis.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		// cache trouble should not block the lookup
		log.Printf("redis get failed key=%s err=%v", key, err)
	}

	streams, err := h.YouTube.ActiveLiveStreams(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := h.Redis.SetJSON(ctx, key, streams, liveStreamsCacheTTL); err != nil {
		log.Printf("redis set failed key=%s err=%v", key, err)
	}
	return streams, nil
}

// LiveStreams resolves a channel URL to its currently live broadcasts.
func (h *Handler) LiveStreams(c *gin.Context) {
	channelURL := c.Query("channel_url")
	if channelURL == "" {
		fail(c, http.StatusBadRequest, 10004, "channel_url required")
		return
	}

	ctx := c.Request.Context()
	channelID, err := h.YouTube.ResolveChannelID(ctx, channelURL)
	if err != nil {
		fail(c, http.StatusBadRequest, 10005, err.Error())
		return
	}

	streams, err := h.cachedLiveStreams(ctx, channelID)
	if err != nil {
		fail(c, http.StatusBadGateway, 50203, "failed to list live streams: "+err.Error())
		return
	}

	ok(c, gin.H{
		"channel_id": channelID,
		"streams":    streams,
	})
}

func (h *Handler) ChannelStats(c *gin.Context) {
	channelURL := c.Query("channel_url")
	if channelURL == "" {
		fail(c, http.StatusBadRequest, 10004, "channel_url required")
		return
	}

	ctx := c.Request.Context()
	channelID, err := h.YouTube.ResolveChannelID(ctx, channelURL)
	if err != nil {
		fail(c, http.StatusBadRequest, 10005, err.Error())
		return
	}

	key := "channel_stats:" + channelID
	var stats youtube.ChannelStats
	if hit, err := h.Redis.GetJSON(ctx, key, &stats); err == nil && hit {
		ok(c, stats)
		return
	}

	fresh, err := h.YouTube.ChannelStats(ctx, channelID)
	if err != nil {
		fail(c, http.StatusBadGateway, 50204, "failed to fetch channel stats: "+err.Error())
		return
	}
	if err := h.Redis.SetJSON(ctx, key, fresh, channelStatsCacheTTL); err != nil {
		log.Printf("redis set failed key=%s err=%v", key, err)
	}

	ok(c, fresh)
}
