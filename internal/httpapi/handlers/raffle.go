package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/raffle"
	"gorm.io/gorm"
)

// PickWinner runs a synchronous weighted draw over the messages stored
// for the current session.
func (h *Handler) PickWinner(c *gin.Context) {
	res, err := h.RaffleSvc.PickFromStore(c.Request.Context())
	if err != nil {
		if errors.Is(err, raffle.ErrNoEntries) {
			fail(c, http.StatusNotFound, 40403, "no messages collected yet")
			return
		}
		log.Printf("[PickWinner] draw failed err=%v", err)
		fail(c, http.StatusInternalServerError, 50003, "draw failed")
		return
	}
	ok(c, res)
}

// CreateDraw queues an asynchronous draw and enqueues it for the
// worker. An Idempotency-Key header makes retries safe.
func (h *Handler) CreateDraw(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > 128 {
		fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var keyPtr *string
	if key != "" {
		keyPtr = &key
	}

	d, created, err := h.RaffleSvc.CreateDraw(c.Request.Context(), keyPtr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40404, "no session is being tracked")
			return
		}
		log.Printf("[CreateDraw] failed key=%s err=%v", key, err)
		fail(c, http.StatusInternalServerError, 50004, "failed to create draw")
		return
	}

	if created {
		if err := h.Rabbit.PublishDraw(c.Request.Context(), d.ID); err != nil {
			log.Printf("[CreateDraw] publish failed draw_id=%s err=%v", d.ID, err)
			fail(c, http.StatusInternalServerError, 50005, "enqueue failed")
			return
		}
	}

	ok(c, gin.H{"draw_id": d.ID, "status": d.Status})
}

func (h *Handler) GetDraw(c *gin.Context) {
	drawID := c.Param("draw_id")
	if drawID == "" {
		fail(c, http.StatusBadRequest, 10002, "draw_id required")
		return
	}

	d, err := h.RaffleSvc.GetDraw(c.Request.Context(), drawID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40405, "draw not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	ok(c, gin.H{"draw": d})
}
