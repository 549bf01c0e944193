package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/utils"
)

// Event names shared by the live hub, the event publisher and the cache.
const (
	EventPointsUpdate = "points_update"
	EventTableCreate  = "table_create"
	EventTableUpdate  = "table_update"
	EventTableDelete  = "table_delete"
	EventPointsReset  = "points_reset"
	EventLeaderboard  = "leaderboard"
)

// ChangeEvent describes one committed change to a table or its balance.
type ChangeEvent struct {
	Type        string                   `json:"event"`
	Table       *models.Table            `json:"table,omitempty"`
	Transaction *models.PointTransaction `json:"transaction,omitempty"`
	Affected    int64                    `json:"affected,omitempty"`
	At          time.Time                `json:"at"`
}

// ChangeListener is told about changes after they are committed.
// Implementations must not block for long.
type ChangeListener interface {
	OnChange(ctx context.Context, ev ChangeEvent)
}

type ChangeListenerFunc func(ctx context.Context, ev ChangeEvent)

func (f ChangeListenerFunc) OnChange(ctx context.Context, ev ChangeEvent) { f(ctx, ev) }

// Notifier fans a ChangeEvent out to every subscribed listener.
type Notifier struct {
	mu        sync.RWMutex
	listeners []ChangeListener
}

func NewNotifier(listeners ...ChangeListener) *Notifier {
	n := &Notifier{}
	for _, l := range listeners {
		n.Subscribe(l)
	}
	return n
}

func (n *Notifier) Subscribe(l ChangeListener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, l)
	n.mu.Unlock()
}

// Notify calls every listener in subscription order. A panicking listener
// is logged and skipped.
func (n *Notifier) Notify(ctx context.Context, ev ChangeEvent) {
	if n == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = utcNow()
	}

	n.mu.RLock()
	listeners := append([]ChangeListener(nil), n.listeners...)
	n.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					utils.ErrorLogger.WithField("event", ev.Type).Errorf("change listener panicked: %v", r)
				}
			}()
			l.OnChange(ctx, ev)
		}()
	}
}
