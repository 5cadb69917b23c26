package registry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the read path of the catalog (spec §4.8) onto an
// existing gin engine/group, following the same router the dispatcher
// uses in pkg/server rather than standing up a second HTTP server.
func (r *Registry) RegisterRoutes(group gin.IRoutes) {
	group.GET("/agent-cards", r.handleList)
	group.GET("/agent-cards/by-id/*hri", r.handleGetByHRI)
	group.GET("/agent-cards/:uuid", r.handleGetByUUID)
}

func (r *Registry) handleList(c *gin.Context) {
	filter := ListFilter{
		Search:  c.Query("search"),
		TEEType: c.Query("tee_type"),
	}
	if tagsParam := c.Query("tags"); tagsParam != "" {
		filter.Tags = strings.Split(tagsParam, ",")
	}
	if teeParam := c.Query("has_tee"); teeParam != "" {
		hasTEE, err := strconv.ParseBool(teeParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "has_tee must be a boolean"})
			return
		}
		filter.HasTEE = &hasTEE
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if offsetParam := c.Query("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		filter.Offset = offset
	}

	result, err := r.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// spec §6 "Wire - Registry Read": "listing returns {items, total, limit, offset}".
	c.JSON(http.StatusOK, result)
}

// handleGetByHRI serves GET /agent-cards/by-id/<hri>. The route is
// registered on a wildcard segment (rather than :hri) specifically so
// that an HRI containing literal slashes survives gin's routing; it is
// then tolerantly URL-decoded before lookup (spec §4.8 "HRI slashes must
// be accepted url-encoded; the server must decode path segments
// tolerantly").
func (r *Registry) handleGetByHRI(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("hri"), "/")
	if raw == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent card not found"})
		return
	}
	hri, err := url.PathUnescape(raw)
	if err != nil {
		hri = raw
	}

	cardJSON, err := r.GetByHRI(c.Request.Context(), hri)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent card not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, "application/json", cardJSON)
}

func (r *Registry) handleGetByUUID(c *gin.Context) {
	cardJSON, err := r.GetByUUID(c.Request.Context(), c.Param("uuid"))
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent card not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, "application/json", cardJSON)
}
