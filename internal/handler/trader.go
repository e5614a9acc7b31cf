package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leadwatch/internal/repository"
	"leadwatch/internal/service"
)

type TraderHandler struct {
	Feed *service.FeedService
	Repo repository.Repository
}

func (h *TraderHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/traders")
	group.GET("/:id", h.get)
	group.GET("/:id/positions", h.positions)
}

func (h *TraderHandler) get(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	detail, err := h.Feed.Trader(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if detail == nil {
		Error(c, http.StatusNotFound, "trader not found", nil)
		return
	}
	Ok(c, detail, nil)
}

func (h *TraderHandler) positions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	limit := intQuery(c, "limit", 200)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"symbol":     "symbol",
		"amount":     "amount",
		"updated_at": "updated_at",
	})
	if orderBy == "" {
		orderBy = "symbol"
	}
	asc := strings.ToLower(strings.TrimSpace(c.Query("order"))) != "desc"

	var status *string
	if v := strings.ToUpper(strings.TrimSpace(c.Query("status"))); v != "" {
		status = &v
	}

	params := repository.ListPositionStatesParams{
		Limit:   limit,
		Offset:  offset,
		LeadID:  &id,
		Symbol:  strQueryPtr(c, "symbol"),
		Status:  status,
		OrderBy: orderBy,
		Asc:     boolPtr(asc),
	}
	items, err := h.Repo.ListPositionStates(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}
