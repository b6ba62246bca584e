package tracing

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledProducesNoOpTracerWithoutNetworkAccess(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, span := p.StartMessageSpan(context.Background(), "job-1", "send_email", "worker-1")
	require.NotNil(t, ctx)
	span.End()
}

func TestInit_DisabledShutdownIsNoOp(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestGinMiddleware_WrapsRequestWithoutError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p, err := Init(context.Background(), Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(p.GinMiddleware())
	engine.GET("/ping", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	require.Equal(t, 200, w.Code)
}
