// Package activities implements the HTTP surface of the activity log:
// ingestion of client-reported events, the paginated admin listing, entity
// and user timelines, and the aggregate stats endpoint.
package activities

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexocrm/nexo-backend/internal/activity"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

// Handler handles activity log API requests.
type Handler struct {
	recorder   *activity.Recorder
	service    *activity.Service
	activities *repositories.ActivityRepository

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewHandler creates a new activity handler.
func NewHandler(recorder *activity.Recorder, service *activity.Service, repo *repositories.ActivityRepository) *Handler {
	return &Handler{
		recorder:   recorder,
		service:    service,
		activities: repo,
		now:        time.Now,
	}
}

// createRequest is the ingestion payload. The actor is never taken from the
// body: identity always comes from the authenticated request context.
type createRequest struct {
	Action      string                 `json:"action" binding:"required"`
	EntityType  string                 `json:"entityType" binding:"required"`
	EntityID    string                 `json:"entityId" binding:"required"`
	EntityName  string                 `json:"entityName"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// paginationEnvelope is the standard list response shape.
type paginationEnvelope struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// @Summary      Record an activity entry
// @Description  Records one activity log entry attributed to the authenticated user.
// @Tags         Activities
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.SystemActivity
// @Failure      400  {object}  map[string]interface{}  "Missing or invalid fields"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/system-activities [post]
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action, entityType and entityId are required"})
		return
	}

	action := activity.Action(req.Action)
	if !action.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
		return
	}

	entry, err := h.recorder.Record(c.Request.Context(), activity.Event{
		Action:      action,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		EntityName:  req.EntityName,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		// Should not happen behind the auth middleware, but an unresolvable
		// actor is the caller's problem, not ours.
		if errors.Is(err, activity.ErrNoActor) || errors.Is(err, activity.ErrUnknownActor) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no valid actor for this request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record activity"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// @Summary      List activity entries
// @Description  Returns a filtered, paginated page of the activity log, newest first.
// @Tags         Activities
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "activities, pagination"
// @Failure      400  {object}  map[string]interface{}  "Invalid date filter"
// @Router       /api/system-activities [get]
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filters := repositories.ActivityFilters{}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}
	if v := c.Query("action"); v != "" {
		filters.Action = &v
	}
	if v := c.Query("entityType"); v != "" {
		filters.EntityType = &v
	}
	if v := c.Query("entityId"); v != "" {
		filters.EntityID = &v
	}
	if v := c.Query("userId"); v != "" {
		filters.UserID = &v
	}
	if v := c.Query("user"); v != "" {
		filters.UserName = &v
	}

	if v := c.Query("date"); v != "" {
		start, end, ok := dateRange(v, h.now())
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown date filter: " + v})
			return
		}
		filters.StartDate = &start
		filters.EndDate = &end
	}

	entries, total, err := h.activities.List(c.Request.Context(), filters, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activities"})
		return
	}

	pages := (total + limit - 1) / limit
	if pages == 0 {
		pages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": entries,
		"pagination": paginationEnvelope{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// dateRange translates a named filter into a [start, end) interval.
func dateRange(name string, now time.Time) (time.Time, time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch name {
	case "today":
		return today, today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), today, true
	case "last7days":
		return today.AddDate(0, 0, -7), today.AddDate(0, 0, 1), true
	case "last30days":
		return today.AddDate(0, 0, -30), today.AddDate(0, 0, 1), true
	case "thismonth":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	case "lastmonth":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// @Summary      Activity statistics
// @Description  Returns aggregate counts, trend deltas, top rankings, and histograms for the dashboard.
// @Tags         Activities
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  activity.Stats
// @Router       /api/system-activities/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary      Entity timeline
// @Description  Returns the activity history of one object, newest first.
// @Tags         Activities
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "activities"
// @Router       /api/system-activities/entity/{type}/{id} [get]
func (h *Handler) EntityTimeline(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	entries, err := h.service.GetEntityActivities(c.Request.Context(), c.Param("type"), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entity timeline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}

// @Summary      User timeline
// @Description  Returns the history of one user's actions, newest first.
// @Tags         Activities
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "activities"
// @Router       /api/system-activities/user/{id} [get]
func (h *Handler) UserTimeline(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	entries, err := h.service.GetUserActivities(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user timeline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}
