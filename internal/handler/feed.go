package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"leadwatch/internal/repository"
	"leadwatch/internal/segment"
	"leadwatch/internal/service"
)

type FeedHandler struct {
	Feed *service.FeedService
}

func (h *FeedHandler) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.GET("/feed", h.feed)
	v1.GET("/feed/records", h.records)
	v1.GET("/heatmap", h.heatmap)
	v1.GET("/events", h.events)
}

func (h *FeedHandler) feed(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	filter := segment.ParseFilter(c.Query("segment"))
	items, err := h.Feed.Feed(c.Request.Context(), filter)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"segment": string(filter)})
}

func (h *FeedHandler) records(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	filter := segment.ParseFilter(c.Query("segment"))
	since := time.Time{}
	if t := timeQueryPtr(c, "since"); t != nil {
		since = *t
	}
	items, err := h.Feed.LatestRecords(c.Request.Context(), filter, since)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"segment": string(filter)})
}

func (h *FeedHandler) heatmap(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	filter := segment.ParseFilter(c.Query("segment"))
	cells, err := h.Feed.Heatmap(c.Request.Context(), filter)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, cells, map[string]any{"segment": string(filter)})
}

func (h *FeedHandler) events(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	filter := segment.ParseFilter(c.Query("segment"))
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	var types []string
	if raw := strings.TrimSpace(c.Query("types")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if v := strings.ToUpper(strings.TrimSpace(part)); v != "" {
				types = append(types, v)
			}
		}
	}
	order := strings.ToLower(strings.TrimSpace(c.Query("order")))
	asc := order == "asc"

	params := repository.ListPositionEventsParams{
		Limit:  limit,
		Offset: offset,
		Symbol: strQueryPtr(c, "symbol"),
		Types:  types,
		Since:  timeQueryPtr(c, "since"),
		Until:  timeQueryPtr(c, "until"),
		Asc:    boolPtr(asc),
	}
	items, err := h.Feed.Events(c.Request.Context(), filter, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}
