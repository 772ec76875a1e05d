package doctor

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the profile endpoints on a group already restricted
// to doctors.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/dashboard", h.Dashboard)
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfile(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "profile": p})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), id.UserID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile updated successfully",
		"profile": p,
	})
}

func (h *Handler) Dashboard(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "dashboard": d})
}
