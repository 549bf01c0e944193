package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/qr"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const recentTransactionsOnDetail = 5

type TableController struct {
	Registry       *services.TableRegistry
	Ranking        *services.Ranking
	Ledger         *services.Ledger
	Notifier       *services.Notifier
	QR             *qr.Renderer
	RestaurantName string
}

func NewTableController(d Deps) *TableController {
	return &TableController{
		Registry:       d.Registry,
		Ranking:        d.Ranking,
		Ledger:         d.Ledger,
		Notifier:       d.Notifier,
		QR:             d.QR,
		RestaurantName: d.RestaurantName,
	}
}

// GetTables -> active tables in ranking order, one page at a time
func (tc *TableController) GetTables(c *gin.Context) {
	page, limit := pageParams(c)
	tables, total, err := tc.Registry.List(c.Request.Context(), page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	entries, err := tc.Ranking.Entries(c.Request.Context(), tables, (page-1)*limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondPaged(c, http.StatusOK, "Elenco tavoli", entries, utils.PageMeta{
		Count: len(entries),
		Total: total,
		Page:  page,
		Pages: utils.TotalPages(total, limit),
	})
}

func (tc *TableController) GetLeaderboard(c *gin.Context) {
	tables, err := tc.Ranking.Leaderboard(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Classifica tavoli", gin.H{
		"leaderboard": services.RankEntries(tables, 0),
		"totalTables": len(tables),
		"lastUpdate":  time.Now().UTC(),
	})
}

// GetTableByQR is what a customer sees after scanning the code.
func (tc *TableController) GetTableByQR(c *gin.Context) {
	_, code, err := qr.Parse(c.Param("qrCode"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("Codice QR non valido. Formato: TABLE_[numero]"))
		return
	}

	ctx := c.Request.Context()
	table, err := tc.Registry.FindByQrCode(ctx, code)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	position, err := tc.Ranking.PositionOf(ctx, table)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Tavolo trovato", gin.H{
		"table":    table,
		"position": position,
		"medal":    services.Medal(position),
	})
}

// GetQRImage -> PNG of the code, for reprinting a single card
func (tc *TableController) GetQRImage(c *gin.Context) {
	_, code, err := qr.Parse(c.Param("qrCode"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("Codice QR non valido. Formato: TABLE_[numero]"))
		return
	}
	if _, err := tc.Registry.FindByQrCode(c.Request.Context(), code); err != nil {
		respondServiceError(c, err)
		return
	}
	png, err := tc.QR.PNG(code)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (tc *TableController) GetTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	table, err := tc.Registry.Get(ctx, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	position, err := tc.Ranking.PositionOf(ctx, table)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	recent, err := tc.Ledger.HistoryForTable(ctx, table.ID, recentTransactionsOnDetail)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Dettaglio tavolo", gin.H{
		"table":              table,
		"position":           position,
		"medal":              services.Medal(position),
		"recentTransactions": recent,
	})
}

// CreateTable also renders the QR image. A rendering failure is logged and
// the table is still created.
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		TableNumber int     `json:"tableNumber" binding:"required"`
		Name        *string `json:"name"`
		Location    *string `json:"location"`
		Capacity    *int    `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	creator := middlewares.CurrentUserID(c)
	table, err := tc.Registry.Create(ctx, services.NewTable{
		TableNumber: req.TableNumber,
		Name:        req.Name,
		Location:    req.Location,
		Capacity:    req.Capacity,
		CreatedBy:   &creator,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if tc.QR != nil {
		path, err := tc.QR.RenderFile(table.TableNumber)
		if err == nil {
			err = tc.Registry.AttachQRImage(ctx, table.ID, path)
		}
		if err != nil {
			utils.ErrorLogger.WithField("table", table.QRCode).Warnf("qr image not generated: %v", err)
		} else {
			table.QRCodeImage = &path
		}
	}

	tc.notify(c, services.EventTableCreate, table)
	utils.InfoLogger.WithFields(logrus.Fields{"table": table.QRCode, "user_id": creator}).Info("table created")
	utils.RespondJSON(c, http.StatusCreated, "Tavolo creato con successo", table)
}

// UpdateTableName is public: customers may name their own table.
func (tc *TableController) UpdateTableName(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("Nome tavolo richiesto"))
		return
	}

	table, err := tc.Registry.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.notify(c, services.EventTableUpdate, table)
	utils.RespondJSON(c, http.StatusOK, "Nome tavolo aggiornato con successo", gin.H{
		"id":          table.ID,
		"tableNumber": table.TableNumber,
		"name":        table.Name,
		"qrCode":      table.QRCode,
	})
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name     *string `json:"name"`
		Location *string `json:"location"`
		Capacity *int    `json:"capacity"`
		IsActive *bool   `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Registry.Update(c.Request.Context(), id, services.TableUpdate{
		Name:     req.Name,
		Location: req.Location,
		Capacity: req.Capacity,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.notify(c, services.EventTableUpdate, table)
	utils.RespondJSON(c, http.StatusOK, "Tavolo aggiornato con successo", table)
}

// DeleteTable deactivates; tables are never removed.
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	table, err := tc.Registry.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.notify(c, services.EventTableDelete, table)
	utils.InfoLogger.WithFields(logrus.Fields{"table": table.QRCode, "user_id": middlewares.CurrentUserID(c)}).Info("table deactivated")
	utils.RespondJSON(c, http.StatusOK, "Tavolo disattivato con successo", nil)
}

func (tc *TableController) GetTableStats(c *gin.Context) {
	stats, err := tc.Registry.Stats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Statistiche tavoli", stats)
}

func (tc *TableController) ResetAllPoints(c *gin.Context) {
	n, err := tc.Registry.ResetAllPoints(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	tc.Notifier.Notify(c.Request.Context(), services.ChangeEvent{Type: services.EventPointsReset, Affected: n})
	utils.InfoLogger.WithFields(logrus.Fields{"tables": n, "user_id": middlewares.CurrentUserID(c)}).Warn("all points reset")
	utils.RespondJSON(c, http.StatusOK, fmt.Sprintf("Punti resettati per %d tavoli", n), gin.H{"modifiedCount": n})
}

// GetQRSheet -> printable PDF with one card per active table
func (tc *TableController) GetQRSheet(c *gin.Context) {
	tables, err := tc.Registry.Active(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	entries := make([]qr.SheetEntry, 0, len(tables))
	for _, t := range tables {
		entries = append(entries, qr.SheetEntry{TableNumber: t.TableNumber, Name: t.Name})
	}

	var buf bytes.Buffer
	if err := tc.QR.WriteSheet(&buf, entries, qr.SheetOptions{RestaurantName: tc.RestaurantName}); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="qr-tavoli.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (tc *TableController) notify(c *gin.Context, event string, table models.Table) {
	tc.Notifier.Notify(c.Request.Context(), services.ChangeEvent{Type: event, Table: &table})
}
