package services

import (
	"context"
)

// SnapshotBroadcaster receives periodic leaderboard snapshots.
type SnapshotBroadcaster interface {
	ClientCount() int
	BroadcastLeaderboard(entries []LeaderboardEntry)
}

// LeaderboardMonitor pushes the full leaderboard to live clients so they
// recover from any event they missed.
type LeaderboardMonitor struct {
	ranking *Ranking
	hub     SnapshotBroadcaster
}

func NewLeaderboardMonitor(ranking *Ranking, hub SnapshotBroadcaster) *LeaderboardMonitor {
	return &LeaderboardMonitor{ranking: ranking, hub: hub}
}

// Push sends one snapshot. Nothing is queried when no client is connected.
func (m *LeaderboardMonitor) Push(ctx context.Context) error {
	if m.hub.ClientCount() == 0 {
		return nil
	}
	tables, err := m.ranking.Leaderboard(ctx)
	if err != nil {
		return err
	}
	m.hub.BroadcastLeaderboard(RankEntries(tables, 0))
	return nil
}
