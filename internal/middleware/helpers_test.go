package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// mockOwnerLookup resolves keys from a fixed map and counts calls.
type mockOwnerLookup struct {
	validKeys map[string]string
	calls     atomic.Int32
}

var errInvalidKey = errors.New("invalid key")

func (m *mockOwnerLookup) GetOwnerByAPIKey(_ context.Context, apiKey string) (string, error) {
	m.calls.Add(1)
	if id, ok := m.validKeys[apiKey]; ok {
		return id, nil
	}
	return "", errInvalidKey
}

func serve(t *testing.T, r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/test", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}
