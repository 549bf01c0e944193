package Controllers_test

import (
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/services"
)

func TestCreateTable(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.cashier)

	w := s.do(t, http.MethodPost, "/api/tables", token, map[string]interface{}{
		"tableNumber": 7,
		"name":        "Tavolo Terrazza",
		"location":    "Terrazza",
		"capacity":    4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var table models.Table
	env := decode(t, w, &table)
	assert.True(t, env.Status)
	assert.Equal(t, "TABLE_7", table.QRCode)
	assert.Equal(t, "Tavolo Terrazza", table.Name)
	assert.Equal(t, 0, table.Points)
	require.NotNil(t, table.QRCodeImage)
	_, err := os.Stat(*table.QRCodeImage)
	assert.NoError(t, err, "qr png should be written")

	w = s.do(t, http.MethodPost, "/api/tables", token, map[string]interface{}{"tableNumber": 7})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/tables", token, map[string]interface{}{"tableNumber": 8, "capacity": 50})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/tables", "", map[string]interface{}{"tableNumber": 9})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTableByQR(t *testing.T) {
	s := newTestServer(t)
	first := s.createTable(t, 1)
	second := s.createTable(t, 2)
	s.award(t, first.QRCode, 10)
	s.award(t, second.QRCode, 30)

	w := s.do(t, http.MethodGet, "/api/tables/qr/table_1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Table    models.Table `json:"table"`
		Position int          `json:"position"`
		Medal    string       `json:"medal"`
	}
	decode(t, w, &body)
	assert.Equal(t, 10, body.Table.Points)
	assert.Equal(t, 2, body.Position)
	assert.Equal(t, "🥈", body.Medal)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/tables/qr/TAVOLO_1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tables/qr/TABLE_99", "", nil).Code)
}

func TestGetTablesPaged(t *testing.T) {
	s := newTestServer(t)
	for n := 1; n <= 5; n++ {
		table := s.createTable(t, n)
		s.award(t, table.QRCode, n*10)
	}

	w := s.do(t, http.MethodGet, "/api/tables?page=2&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []services.LeaderboardEntry
	env := decode(t, w, &entries)
	assert.Equal(t, int64(5), env.Total)
	assert.Equal(t, 3, env.Pages)
	assert.Equal(t, 2, env.Page)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].Position)
	assert.Equal(t, "🥉", entries[0].Medal)
	assert.Equal(t, 30, entries[0].Points)
	assert.Equal(t, 4, entries[1].Position)
	assert.Equal(t, "", entries[1].Medal)
}

func TestGetLeaderboard(t *testing.T) {
	s := newTestServer(t)
	a := s.createTable(t, 1)
	b := s.createTable(t, 2)
	c := s.createTable(t, 3)
	s.award(t, a.QRCode, 5)
	s.award(t, b.QRCode, 50)
	s.award(t, c.QRCode, 20)
	_, err := s.deps.Registry.Deactivate(testContext(), c.ID)
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/tables/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Leaderboard []services.LeaderboardEntry `json:"leaderboard"`
		TotalTables int                         `json:"totalTables"`
	}
	decode(t, w, &body)
	assert.Equal(t, 2, body.TotalTables)
	require.Len(t, body.Leaderboard, 2)
	assert.Equal(t, "TABLE_2", body.Leaderboard[0].QRCode)
	assert.Equal(t, "🥇", body.Leaderboard[0].Medal)
	assert.Equal(t, "TABLE_1", body.Leaderboard[1].QRCode)
}

func TestGetTableDetail(t *testing.T) {
	s := newTestServer(t)
	table := s.createTable(t, 4)
	for i := 0; i < 7; i++ {
		s.award(t, table.QRCode, 1)
	}

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/tables/%d", table.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Table              models.Table              `json:"table"`
		Position           int                       `json:"position"`
		RecentTransactions []models.PointTransaction `json:"recentTransactions"`
	}
	decode(t, w, &body)
	assert.Equal(t, 7, body.Table.Points)
	assert.Equal(t, 1, body.Position)
	assert.Len(t, body.RecentTransactions, 5)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/tables/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tables/999", "", nil).Code)
}

func TestUpdateTableNameIsPublic(t *testing.T) {
	s := newTestServer(t)
	table := s.createTable(t, 3)

	path := fmt.Sprintf("/api/tables/%d/name", table.ID)
	w := s.do(t, http.MethodPut, path, "", map[string]string{"name": "  I Campioni  "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Name string `json:"name"`
	}
	decode(t, w, &body)
	assert.Equal(t, "I Campioni", body.Name)

	w = s.do(t, http.MethodPut, path, "", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := s.deps.Registry.Deactivate(testContext(), table.ID)
	require.NoError(t, err)
	w = s.do(t, http.MethodPut, path, "", map[string]string{"name": "Altro"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTable(t *testing.T) {
	s := newTestServer(t)
	table := s.createTable(t, 5)
	token := s.tokenFor(t, s.cashier)

	w := s.do(t, http.MethodPut, fmt.Sprintf("/api/tables/%d", table.ID), token, map[string]interface{}{
		"location": "Giardino",
		"capacity": 6,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Table
	decode(t, w, &updated)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "Giardino", *updated.Location)
	require.NotNil(t, updated.Capacity)
	assert.Equal(t, 6, *updated.Capacity)
}

func TestDeleteTableRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	table := s.createTable(t, 6)
	s.award(t, table.QRCode, 12)
	path := fmt.Sprintf("/api/tables/%d", table.ID)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, path, s.tokenFor(t, s.cashier), nil).Code)

	w := s.do(t, http.MethodDelete, path, s.tokenFor(t, s.admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tables/qr/TABLE_6", "", nil).Code)

	stored, err := s.deps.Registry.Get(testContext(), table.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 12, stored.Points)
}

func TestTableStats(t *testing.T) {
	s := newTestServer(t)
	a := s.createTable(t, 1)
	b := s.createTable(t, 2)
	s.award(t, a.QRCode, 10)
	s.award(t, b.QRCode, 30)

	w := s.do(t, http.MethodGet, "/api/tables/stats", s.tokenFor(t, s.cashier), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats services.TableStats
	decode(t, w, &stats)
	assert.Equal(t, int64(2), stats.TotalTables)
	assert.Equal(t, int64(40), stats.TotalPoints)
	assert.InDelta(t, 20.0, stats.AveragePoints, 0.001)
	assert.Equal(t, int64(30), stats.MaxPoints)
	assert.Equal(t, int64(10), stats.MinPoints)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tables/stats", "", nil).Code)
}

func TestResetAllPoints(t *testing.T) {
	s := newTestServer(t)
	a := s.createTable(t, 1)
	b := s.createTable(t, 2)
	s.award(t, a.QRCode, 10)
	s.award(t, b.QRCode, 20)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/tables/reset-points", s.tokenFor(t, s.cashier), nil).Code)

	w := s.do(t, http.MethodPost, "/api/tables/reset-points", s.tokenFor(t, s.admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "Punti resettati per 2 tavoli", env.Message)

	for _, id := range []uint{a.ID, b.ID} {
		table, err := s.deps.Registry.Get(testContext(), id)
		require.NoError(t, err)
		assert.Equal(t, 0, table.Points)
		assert.NotNil(t, table.PointsResetAt)
	}
}

func TestQRSheet(t *testing.T) {
	s := newTestServer(t)
	s.createTable(t, 1)
	s.createTable(t, 2)

	w := s.do(t, http.MethodGet, "/api/tables/print-sheet", s.tokenFor(t, s.cashier), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String()[:4])
}

func TestQRImage(t *testing.T) {
	s := newTestServer(t)
	s.createTable(t, 1)

	w := s.do(t, http.MethodGet, "/api/tables/qr/TABLE_1/image", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String()[:4])
}
