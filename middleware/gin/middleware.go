package ginmw

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/middleware"
	"github.com/reoring/jsnorm/repository"
)

// Normalize rewrites the JSON body of write requests according to the schema
// registered for the request's collection (the first path segment), and
// stores the result in the request context. Decode failures abort with 400
// and an Issues payload.
func Normalize(repo repository.Repository, opt middleware.Options) gin.HandlerFunc {
	opt = opt.WithDefaults()
	return func(c *gin.Context) {
		res, err := middleware.Process(c.Request.Context(), repo, c.Request.Method, c.Request.URL.Path, c.Request.Body, opt)
		if err != nil {
			herr := asHTTPError(err)
			c.AbortWithStatusJSON(herr.Status, herr.Payload)
			return
		}
		if res.Skipped {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(res.Body))
		c.Request.ContentLength = int64(len(res.Body))
		c.Request.Header.Set("Content-Length", strconv.Itoa(len(res.Body)))
		c.Request = c.Request.WithContext(middleware.ContextWithNormalized(c.Request.Context(), res.Normalized))
		c.Next()
	}
}

// GetNormalized fetches the normalization result from gin.Context.
func GetNormalized(c *gin.Context) (jsnorm.Normalized, bool) {
	return middleware.NormalizedFromContext(c.Request.Context())
}

func asHTTPError(err error) *middleware.HTTPError {
	var herr *middleware.HTTPError
	if errors.As(err, &herr) {
		return herr
	}
	return &middleware.HTTPError{Status: http.StatusInternalServerError, Payload: map[string]any{"error": err.Error()}, Err: err}
}
