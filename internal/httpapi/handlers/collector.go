package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/stream"
	"github.com/raffleri/raffleri/internal/youtube"
	"gorm.io/gorm"
)

type startCollectorReq struct {
	LiveChatID string `json:"live_chat_id"`
	VideoURL   string `json:"video_url"`
	ChannelURL string `json:"channel_url"`
}

// StartCollector resolves the request to a live chat id, creates (or
// reuses) the session for it, wiping prior data when the stream
// changed, and starts the polling task. Idempotent for the id that is
// already being collected.
func (h *Handler) StartCollector(c *gin.Context) {
	var req startCollectorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()

	liveChatID := req.LiveChatID
	opts := stream.SessionOpts{
		ResetOnNew: true,
		Origin:     h.Cfg.Origin,
		ChannelURL: req.ChannelURL,
		VideoURL:   req.VideoURL,
	}

	if liveChatID == "" && req.VideoURL != "" {
		videoID, err := youtube.ExtractVideoID(req.VideoURL)
		if err != nil {
			fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		opts.VideoID = videoID
		liveChatID, err = h.YouTube.LiveChatID(ctx, videoID)
		if err != nil {
			fail(c, http.StatusBadGateway, 50201, "failed to look up live chat: "+err.Error())
			return
		}
	}

	if liveChatID == "" && req.ChannelURL != "" {
		s, err := h.resolveLiveStream(ctx, req.ChannelURL)
		if err != nil {
			fail(c, http.StatusBadGateway, 50202, err.Error())
			return
		}
		if s == nil {
			fail(c, http.StatusNotFound, 40401, "channel has no active live stream")
			return
		}
		liveChatID = s.LiveChatID
		opts.VideoID = s.VideoID
		opts.VideoURL = s.VideoURL
	}

	if liveChatID == "" {
		fail(c, http.StatusNotFound, 40402, "no live chat found; the stream may not be live or chat is disabled")
		return
	}

	sess, err := h.Streams.GetOrCreateSession(ctx, liveChatID, opts)
	if err != nil {
		log.Printf("[StartCollector] session create failed live_chat_id=%s err=%v", liveChatID, err)
		fail(c, http.StatusInternalServerError, 50002, "failed to create session")
		return
	}

	h.Collector.Start(liveChatID)

	ok(c, gin.H{
		"live_chat_id":   sess.LiveChatID,
		"video_id":       sess.VideoID,
		"video_url":      sess.VideoURL,
		"total_comments": sess.TotalComments,
	})
}

func (h *Handler) StopCollector(c *gin.Context) {
	h.Collector.Stop()
	ok(c, h.Collector.Status())
}

// CollectorStatus is the only feedback channel for collection health:
// UIs poll it.
func (h *Handler) CollectorStatus(c *gin.Context) {
	st := h.Collector.Status()
	resp := gin.H{
		"collecting":   st.Collecting,
		"live_chat_id": st.LiveChatID,
		"last_error":   st.LastError,
	}

	if sess, err := h.Streams.CurrentSession(c.Request.Context()); err == nil {
		resp["session"] = sess
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[CollectorStatus] current session lookup failed err=%v", err)
	}

	ok(c, resp)
}

// resolveLiveStream finds the channel's first active live stream with
// a chat id, going through the redis cache first.
func (h *Handler) resolveLiveStream(ctx context.Context, channelURL string) (*youtube.LiveStream, error) {
	channelID, err := h.YouTube.ResolveChannelID(ctx, channelURL)
	if err != nil {
		return nil, err
	}

	streams, err := h.cachedLiveStreams(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for i := range streams {
		if streams[i].LiveChatID != "" {
			return &streams[i], nil
		}
	}
	return nil, nil
}
