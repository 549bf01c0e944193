package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/services"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/tables/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tables/7", nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `table_points_http_requests_total{method="GET",path="/api/tables/:id",status="404"} 2`)
	assert.Contains(t, body, "table_points_http_request_duration_seconds_bucket")
}

func TestDomainCounters(t *testing.T) {
	m := New()
	tx := models.PointTransaction{Points: 15, Type: models.TransactionBonus}

	m.OnChange(context.Background(), services.ChangeEvent{Type: services.EventPointsUpdate, Transaction: &tx})
	m.OnChange(context.Background(), services.ChangeEvent{Type: services.EventTableCreate})
	m.ObserveReconcile(services.ReconcileReport{Drifts: []services.Drift{{TableID: 1}, {TableID: 2}}})
	m.TrackLiveClients(func() int { return 3 })

	body := scrape(t, m)
	assert.Contains(t, body, `table_points_changes_total{event="points_update"} 1`)
	assert.Contains(t, body, `table_points_changes_total{event="table_create"} 1`)
	assert.Contains(t, body, `table_points_points_total{type="BONUS"} 15`)
	assert.Contains(t, body, "table_points_ledger_drift_tables 2")
	assert.Contains(t, body, "table_points_reconcile_runs_total 1")
	assert.Contains(t, body, "table_points_live_clients 3")
}
