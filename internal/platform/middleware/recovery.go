package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
)

// Recovery turns a panic into the standard {success:false} 500 body, with the
// request id so a client report can be matched to the logged stack.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				rid, _ := c.Get("request_id").(string)
				ev := logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n]))
				if uid, ok := c.Get("user_id").(int64); ok {
					ev = ev.Int64("user_id", uid)
				}
				ev.Msg("panic recovered")

				if c.Response().Committed {
					err = nil
					return
				}
				body := apperror.Body(apperror.Database("panic", fmt.Errorf("%v", r)))
				if rid != "" {
					body["request_id"] = rid
				}
				err = c.JSON(http.StatusInternalServerError, body)
			}()
			return next(c)
		}
	}
}
