package prescription

import (
	"fmt"
	"net/http"
	"strconv"

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
	g.POST("/prescriptions", h.Dispatch)
	g.GET("/prescriptions", h.List)
	g.GET("/prescription", h.Get)
	g.GET("/prescription/pdf", h.PDF)
}

// Dispatch routes the single POST endpoint by its action field.
func (h *Handler) Dispatch(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()

	switch req.Action {
	case ActionCreate, "":
		issued, err := h.engine.Create(ctx, id, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":           true,
			"message":           "Prescription created successfully",
			"prescription_id":   issued.PrescriptionID,
			"verification_code": issued.VerificationCode,
		})
	case ActionUpdate:
		issued, err := h.engine.Update(ctx, id, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":           true,
			"message":           "Prescription updated successfully",
			"prescription_id":   issued.PrescriptionID,
			"verification_code": issued.VerificationCode,
		})
	case ActionCancel:
		if err := h.engine.Cancel(ctx, id, int64(req.PrescriptionID), req.Reason); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Prescription cancelled",
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid action")
	}
}

func (h *Handler) Get(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	rxID, err := queryID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.Get(c.Request().Context(), id, rxID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "prescription": p})
}

// PDF streams a printable copy of one of the caller's prescriptions.
func (h *Handler) PDF(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	rxID, err := queryID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.Get(c.Request().Context(), id, rxID)
	if err != nil {
		return err
	}
	data, err := RenderPDF(p)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="prescription-%s.pdf"`, p.VerificationCode))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func queryID(c echo.Context) (int64, error) {
	rxID, err := strconv.ParseInt(c.QueryParam("id"), 10, 64)
	if err != nil || rxID <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Prescription ID is required")
	}
	return rxID, nil
}

func (h *Handler) List(c echo.Context) error {
	id, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = pid
	}
	items, total, err := h.engine.List(c.Request().Context(), id, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
