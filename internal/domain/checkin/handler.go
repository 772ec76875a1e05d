package checkin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/pkg/pagination"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/checkin", h.CheckIn)
	g.GET("/scan-logs", h.ListLogs)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	res, err := h.engine.CheckIn(c.Request().Context(), id, req.QRCode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Check-in successful",
		"data":    res,
	})
}

func (h *Handler) ListLogs(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	logs, total, err := h.engine.ListLogs(c.Request().Context(), id, LogFilter{Result: c.QueryParam("result")}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []*ScanLog{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(logs, total, pg))
}
