// internal/handlers/audit/audit_handler.go
package audit

import (
	"context"
	"net/http"
	"time"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Lister interface {
	List(ctx context.Context, filter auth.AuditFilter) ([]auth.Event, int64, error)
}

type AuditHandler struct {
	store  Lister
	logger *zap.Logger
}

func NewAuditHandler(store Lister, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{store: store, logger: logger}
}

type listQuery struct {
	UserID   *int64     `form:"user_id" binding:"omitempty,min=1"`
	Type     string     `form:"type"`
	Since    *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"omitempty,min=1,max=10000"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListEvents returns stored auth events, newest first (requires ViewAuditLog)
func (h *AuditHandler) ListEvents(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	filter := auth.AuditFilter{
		UserID:   q.UserID,
		Since:    q.Since,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Type != "" {
		t := auth.EventType(q.Type)
		if !t.Known() {
			response.Error(c, http.StatusBadRequest, "unknown event type", nil)
			return
		}
		filter.Type = &t
	}
	filter.Normalize()

	events, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list audit events", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to get audit events", nil)
		return
	}

	response.Success(c, http.StatusOK, "audit events retrieved", gin.H{
		"events":    events,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}
