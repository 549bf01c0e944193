package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/live"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/qr"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

// Deps bundles everything the HTTP handlers need. It is built once in main
// (or in tests) and shared by every controller.
type Deps struct {
	DB         *gorm.DB
	Registry   *services.TableRegistry
	Ledger     *services.Ledger
	Ranking    *services.Ranking
	Points     *services.PointsService
	Notifier   *services.Notifier
	Reconciler *services.Reconciler

	Tokens    *utils.TokenService
	Blacklist *utils.TokenBlacklist
	QR        *qr.Renderer
	Hub       *live.Hub

	BcryptCost     int
	RestaurantName string
	AllowedOrigin  string
}

// NewDeps wires the core services on top of db.
func NewDeps(db *gorm.DB, maxPointsPerTransaction int, repair bool) Deps {
	registry := services.NewTableRegistry(db)
	ledger := services.NewLedger(db)
	notifier := services.NewNotifier()
	return Deps{
		DB:         db,
		Registry:   registry,
		Ledger:     ledger,
		Ranking:    services.NewRanking(db, registry),
		Points:     services.NewPointsService(db, registry, ledger, notifier, maxPointsPerTransaction),
		Notifier:   notifier,
		Reconciler: services.NewReconciler(db, registry, ledger, repair),
	}
}

var errInternal = errors.New("Errore interno del server")

// respondServiceError maps service error kinds to HTTP status codes.
// Anything unclassified is logged and reported as a 500.
func respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindTableInactive, services.KindInsufficientPoints, services.KindValidationFailed:
		status = http.StatusBadRequest
	case services.KindDuplicateKey:
		status = http.StatusConflict
	case services.KindUnauthorized:
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		utils.ErrorLogger.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
		utils.RespondError(c, status, errInternal)
		return
	}
	utils.RespondError(c, status, err)
}

// idParam parses a positive numeric path parameter, answering 400 itself
// when it is not one.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("ID non valido"))
		return 0, false
	}
	return uint(id), true
}

// pageParams reads ?page and ?limit. Invalid values fall back to defaults.
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{ID: middlewares.CurrentUserID(c), Role: middlewares.CurrentRole(c)}
}

func provenanceFrom(c *gin.Context) services.Provenance {
	return services.Provenance{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
}
