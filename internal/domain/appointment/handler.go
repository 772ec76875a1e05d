package appointment

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments/status", h.UpdateStatus)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ch, err := h.svc.UpdateStatus(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Appointment status updated to " + ch.Status,
		"new_status": ch.Status,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	apptID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || apptID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	a, err := h.svc.Get(c.Request().Context(), id, apptID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "appointment": a})
}

func (h *Handler) List(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status: c.QueryParam("status"),
		Scope:  c.QueryParam("date"),
		Search: c.QueryParam("search"),
	}
	items, total, err := h.svc.List(c.Request().Context(), id, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
