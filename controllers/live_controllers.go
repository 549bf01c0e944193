package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/table-points/live"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

type LiveController struct {
	Hub      *live.Hub
	Ranking  *services.Ranking
	upgrader websocket.Upgrader
}

func NewLiveController(d Deps) *LiveController {
	lc := &LiveController{Hub: d.Hub, Ranking: d.Ranking}
	lc.upgrader = websocket.Upgrader{CheckOrigin: originChecker(d.AllowedOrigin)}
	return lc
}

// originChecker accepts same-host requests, anything when allowed is "*" or
// empty, and otherwise only the configured frontend origin.
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "" || allowed == "*" {
			return true
		}
		if origin == allowed {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// Leaderboard -> websocket; the client gets a snapshot right away, then
// every broadcast until it disconnects.
func (lc *LiveController) Leaderboard(c *gin.Context) {
	ws, err := lc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithField("remote", c.ClientIP()).Warnf("websocket upgrade failed: %v", err)
		return
	}

	if tables, err := lc.Ranking.Leaderboard(c.Request.Context()); err == nil {
		_ = ws.WriteJSON(live.Message{Event: services.EventLeaderboard, Data: services.RankEntries(tables, 0)})
	}

	lc.Hub.Register(ws, c.ClientIP())
	defer lc.Hub.Unregister(ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
