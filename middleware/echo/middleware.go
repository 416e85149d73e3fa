package echomw

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/middleware"
	"github.com/reoring/jsnorm/repository"
)

// Normalize rewrites the JSON body of write requests according to the schema
// registered for the request's collection, stores the result in the request
// context, or returns 400 with Issues when the payload cannot be decoded.
func Normalize(repo repository.Repository, opt middleware.Options) echo.MiddlewareFunc {
	opt = opt.WithDefaults()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res, err := middleware.Process(req.Context(), repo, req.Method, req.URL.Path, req.Body, opt)
			if err != nil {
				herr := asHTTPError(err)
				return c.JSON(herr.Status, herr.Payload)
			}
			if res.Skipped {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewReader(res.Body))
			req.ContentLength = int64(len(res.Body))
			req.Header.Set("Content-Length", strconv.Itoa(len(res.Body)))
			c.SetRequest(req.WithContext(middleware.ContextWithNormalized(req.Context(), res.Normalized)))
			return next(c)
		}
	}
}

// GetNormalized fetches the normalization result from echo.Context.
func GetNormalized(c echo.Context) (jsnorm.Normalized, bool) {
	return middleware.NormalizedFromContext(c.Request().Context())
}

func asHTTPError(err error) *middleware.HTTPError {
	var herr *middleware.HTTPError
	if errors.As(err, &herr) {
		return herr
	}
	return &middleware.HTTPError{Status: http.StatusInternalServerError, Payload: map[string]any{"error": err.Error()}, Err: err}
}
