package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, path, origin string, preflight bool) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.Handle(method, path, func(c *gin.Context) { c.Status(http.StatusOK) })

	reqMethod := method
	if preflight {
		reqMethod = http.MethodOptions
	}
	req, _ := http.NewRequest(reqMethod, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", method)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPreflightFromAllowedOrigin(t *testing.T) {
	w := serve([]string{"https://Timetable.example.ac.jp/"}, http.MethodPost, "/timetables/generate", "https://timetable.example.ac.jp", true)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://timetable.example.ac.jp", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Location")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestForeignOriginNotEchoed(t *testing.T) {
	w := serve([]string{"https://timetable.example.ac.jp"}, http.MethodGet, "/holidays", "https://evil.example.com", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAnyOriginWithoutCredentials(t *testing.T) {
	w := serve(nil, http.MethodGet, "/holidays", "https://anywhere.example.com", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPlainOptionsReachesRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(nil))
	r.OPTIONS("/timetables", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/timetables", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
