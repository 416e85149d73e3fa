package ginmw_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/middleware"
	ginmw "github.com/reoring/jsnorm/middleware/gin"
	"github.com/reoring/jsnorm/repository"
	"github.com/reoring/jsnorm/schemadoc"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	doc, _, err := schemadoc.Import([]byte(`{"collectionName":"people","properties":{"status":{"readOnly":true,"default":"new"}}}`), schemadoc.Options{})
	require.NoError(t, err)
	repo := repository.NewMemory()
	require.NoError(t, repo.Put(ctx, doc))

	r := gin.New()
	r.Use(ginmw.Normalize(repo, middleware.Options{}))
	echoBody := func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		_, injected := ginmw.GetNormalized(c)
		c.Header("X-Normalized", map[bool]string{true: "yes", false: "no"}[injected])
		c.Data(http.StatusOK, "application/json", b)
	}
	r.POST("/:collection", echoBody)
	r.GET("/:collection", echoBody)
	return r
}

func TestNormalize(t *testing.T) {
	t.Run("Should replace the body with the normalized document", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/people", strings.NewReader(`{"name":"wilson","status":"single"}`))
		newRouter(t).ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"wilson","status":"new"}`, w.Body.String())
		assert.Equal(t, "yes", w.Header().Get("X-Normalized"))
	})
	t.Run("Should pass through collections without schema", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"status":"x"}`))
		newRouter(t).ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"x"}`, w.Body.String())
		assert.Equal(t, "no", w.Header().Get("X-Normalized"))
	})
	t.Run("Should abort with 400 on malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/people", strings.NewReader(`{"status":`))
		newRouter(t).ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"parse_error"`)
	})
	t.Run("Should leave reads untouched", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/people", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no", w.Header().Get("X-Normalized"))
	})
}
