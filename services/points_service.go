package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

const (
	DefaultMaxPointsPerTransaction = 100

	defaultAwardDescription  = "Punti assegnati dal cassiere"
	defaultRedeemDescription = "Punti riscattati"
)

// Actor -> authenticated user performing the operation
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) CanManagePoints() bool {
	return a.ID != 0 && (a.Role == models.RoleCashier || a.Role == models.RoleAdmin)
}

// PointsRequest is shared by Award and Redeem. Type is only read by Award
// and defaults to EARNED.
type PointsRequest struct {
	QRCode      string
	Points      int
	Type        string
	Description string
	Actor       Actor
	Provenance  Provenance
}

type PointsResult struct {
	Table       models.Table            `json:"table"`
	Transaction models.PointTransaction `json:"transaction"`
}

// PointsService is the only writer of table balances. Every change updates
// the balance and appends the matching ledger entry in one transaction.
type PointsService struct {
	db        *gorm.DB
	registry  *TableRegistry
	ledger    *Ledger
	notifier  *Notifier
	maxPoints int
}

func NewPointsService(db *gorm.DB, registry *TableRegistry, ledger *Ledger, notifier *Notifier, maxPointsPerTransaction int) *PointsService {
	if maxPointsPerTransaction <= 0 {
		maxPointsPerTransaction = DefaultMaxPointsPerTransaction
	}
	if maxPointsPerTransaction > MaxLedgerPoints {
		maxPointsPerTransaction = MaxLedgerPoints
	}
	return &PointsService{
		db:        db,
		registry:  registry,
		ledger:    ledger,
		notifier:  notifier,
		maxPoints: maxPointsPerTransaction,
	}
}

func (s *PointsService) MaxPointsPerTransaction() int { return s.maxPoints }

// Award adds req.Points to the table identified by req.QRCode.
func (s *PointsService) Award(ctx context.Context, req PointsRequest) (PointsResult, error) {
	typ := strings.ToUpper(strings.TrimSpace(req.Type))
	if typ == "" {
		typ = models.TransactionEarned
	}
	if typ == models.TransactionRedeemed || !models.IsValidTransactionType(typ) {
		return PointsResult{}, newError(KindValidationFailed, "Tipo transazione non valido per assegnazione: %s", req.Type)
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = defaultAwardDescription
	}
	req.Type = typ
	return s.apply(ctx, req, 1)
}

// Redeem removes req.Points from the table; the balance may reach zero but
// never go below it.
func (s *PointsService) Redeem(ctx context.Context, req PointsRequest) (PointsResult, error) {
	if strings.TrimSpace(req.Description) == "" {
		req.Description = defaultRedeemDescription
	}
	req.Type = models.TransactionRedeemed
	return s.apply(ctx, req, -1)
}

func (s *PointsService) apply(ctx context.Context, req PointsRequest, sign int) (PointsResult, error) {
	if !req.Actor.CanManagePoints() {
		return PointsResult{}, newError(KindUnauthorized, "Solo cassieri e amministratori possono gestire i punti")
	}
	req.Description = strings.TrimSpace(req.Description)

	delta := sign * req.Points
	var result PointsResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		registry := s.registry.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		table, err := registry.findByQrCodeAnyStatus(ctx, req.QRCode)
		if err != nil {
			return err
		}
		if !table.IsActive {
			return newError(KindTableInactive, "Tavolo %s non attivo", table.QRCode)
		}
		if req.Points < 1 || req.Points > s.maxPoints {
			return newError(KindValidationFailed, "Punti devono essere tra 1 e %d", s.maxPoints)
		}
		if sign < 0 && table.Points < req.Points {
			return newError(KindInsufficientPoints,
				"Punti insufficienti. Disponibili: %d, richiesti: %d", table.Points, req.Points)
		}

		updated, err := registry.ApplyPointsDelta(ctx, table.ID, delta)
		if err != nil {
			return err
		}

		entry, err := ledger.Append(ctx, Entry{
			TableID:        updated.ID,
			ActingUserID:   req.Actor.ID,
			Points:         req.Points,
			Type:           req.Type,
			Description:    req.Description,
			PreviousPoints: updated.Points - delta,
			NewPoints:      updated.Points,
			Provenance:     req.Provenance,
		})
		if err != nil {
			return err
		}

		result = PointsResult{Table: updated, Transaction: entry}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if !errors.As(err, &svcErr) {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"qr_code": req.QRCode,
				"type":    req.Type,
				"points":  req.Points,
				"user_id": req.Actor.ID,
			}).Errorf("points change rolled back: %v", err)
		}
		return PointsResult{}, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"table":           result.Table.QRCode,
		"type":            result.Transaction.Type,
		"points":          result.Transaction.Points,
		"previous_points": result.Transaction.Metadata.PreviousPoints,
		"new_points":      result.Transaction.Metadata.NewPoints,
		"user_id":         req.Actor.ID,
	}).Info("points updated")

	table := result.Table
	entry := result.Transaction
	s.notifier.Notify(ctx, ChangeEvent{
		Type:        EventPointsUpdate,
		Table:       &table,
		Transaction: &entry,
	})
	return result, nil
}
