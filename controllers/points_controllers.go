package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/qr"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const dateLayout = "2006-01-02"

type PointsController struct {
	Registry   *services.TableRegistry
	Ledger     *services.Ledger
	Points     *services.PointsService
	Reconciler *services.Reconciler
}

func NewPointsController(d Deps) *PointsController {
	return &PointsController{
		Registry:   d.Registry,
		Ledger:     d.Ledger,
		Points:     d.Points,
		Reconciler: d.Reconciler,
	}
}

type pointsRequest struct {
	QRCode      string `json:"qrCode" binding:"required"`
	Points      int    `json:"points" binding:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// bind parses the body and turns it into a service request. On failure it
// has already answered.
func (pc *PointsController) bind(c *gin.Context) (services.PointsRequest, bool) {
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("QR code e punti sono richiesti"))
		return services.PointsRequest{}, false
	}
	_, code, err := qr.Parse(req.QRCode)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Codice QR non valido"))
		return services.PointsRequest{}, false
	}
	return services.PointsRequest{
		QRCode:      code,
		Points:      req.Points,
		Type:        req.Type,
		Description: req.Description,
		Actor:       actorFrom(c),
		Provenance:  provenanceFrom(c),
	}, true
}

func (pc *PointsController) AddPoints(c *gin.Context) {
	req, ok := pc.bind(c)
	if !ok {
		return
	}
	res, err := pc.Points.Award(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK,
		fmt.Sprintf("%d punti aggiunti a %s", res.Transaction.Points, res.Table.Name), res)
}

func (pc *PointsController) RedeemPoints(c *gin.Context) {
	req, ok := pc.bind(c)
	if !ok {
		return
	}
	res, err := pc.Points.Redeem(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK,
		fmt.Sprintf("%d punti riscattati da %s", res.Transaction.Points, res.Table.Name), res)
}

// GetTransactions -> ?tableId&assignedBy&type&page&limit
func (pc *PointsController) GetTransactions(c *gin.Context) {
	page, limit := pageParams(c)
	filter := services.TransactionFilter{Page: page, Limit: limit}

	if v := c.Query("tableId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("tableId non valido"))
			return
		}
		tableID := uint(id)
		filter.TableID = &tableID
	}
	if v := c.Query("assignedBy"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("assignedBy non valido"))
			return
		}
		userID := uint(id)
		filter.AssignedBy = &userID
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("type"))); v != "" {
		if !models.IsValidTransactionType(v) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("Tipo transazione non valido"))
			return
		}
		filter.Type = &v
	}

	list, total, err := pc.Ledger.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondPaged(c, http.StatusOK, "Elenco transazioni", list, utils.PageMeta{
		Count: len(list),
		Total: total,
		Page:  page,
		Pages: utils.TotalPages(total, limit),
	})
}

// GetTableHistory is public, customers look at their own table.
func (pc *PointsController) GetTableHistory(c *gin.Context) {
	id, ok := idParam(c, "tableId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	ctx := c.Request.Context()
	table, err := pc.Registry.Get(ctx, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	history, err := pc.Ledger.HistoryForTable(ctx, table.ID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Storico transazioni", gin.H{
		"table": gin.H{
			"id":            table.ID,
			"tableNumber":   table.TableNumber,
			"name":          table.Name,
			"currentPoints": table.Points,
		},
		"transactions": history,
	})
}

// GetUserActivity -> a user's own activity, admins may read anyone's
func (pc *PointsController) GetUserActivity(c *gin.Context) {
	id, ok := idParam(c, "userId")
	if !ok {
		return
	}
	if middlewares.CurrentRole(c) != models.RoleAdmin && middlewares.CurrentUserID(c) != id {
		utils.RespondError(c, http.StatusForbidden, errors.New("Non autorizzato a visualizzare questa attività"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	activity, err := pc.Ledger.ActivityForUser(c.Request.Context(), id, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Attività utente", activity)
}

// GetDailyStats -> ?date=YYYY-MM-DD, today when missing
func (pc *PointsController) GetDailyStats(c *gin.Context) {
	day := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("Data non valida, formato YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	agg, err := pc.Ledger.DailyAggregate(c.Request.Context(), day)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Statistiche giornaliere", agg)
}

// DeleteTransaction hides an entry from listings. The balance is not touched.
func (pc *PointsController) DeleteTransaction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tx, err := pc.Ledger.SoftDelete(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.WithField("transaction", tx.ID).WithField("user_id", middlewares.CurrentUserID(c)).Info("transaction soft deleted")
	utils.RespondJSON(c, http.StatusOK, "Transazione eliminata con successo", nil)
}

// Reconcile runs a ledger check on demand.
func (pc *PointsController) Reconcile(c *gin.Context) {
	report, err := pc.Reconciler.Run(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, fmt.Sprintf("Verificati %d tavoli, %d discrepanze", report.CheckedTables, len(report.Drifts)), report)
}
