package patient

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
	g.GET("/patients", h.Roster)
	g.GET("/patients/:id", h.Detail)
}

func (h *Handler) Roster(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Roster(c.Request().Context(), id, c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*RosterEntry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Detail(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	pid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || pid <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	d, err := h.svc.Detail(c.Request().Context(), id, pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "patient": d})
}
