package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/avidquiz/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	QuizResult struct {
		SessionID    string `json:"sessionId"`
		Total        int    `json:"total"`
		CorrectCount int    `json:"correctCount"`
		CoinsEarned  int    `json:"coinsEarned"`
		XPEarned     int    `json:"xpEarned"`
		CoinsTotal   int    `json:"coinsTotal"`
		XPTotal      int    `json:"xpTotal"`
		Streak       int    `json:"streak"`
	}

	LeaderboardUpdate struct {
		Entry domain.LeaderboardEntry `json:"entry"`
		Rank  int                     `json:"rank"`
	}
)

// PublishQuizFinished notifies the session channel of a finished quiz.
func (a *API) PublishQuizFinished(ctx context.Context, e domain.EventQuizFinished) error {
	data := QuizResult{
		SessionID:    e.SessionID,
		Total:        e.Total,
		CorrectCount: e.CorrectCount,
		CoinsEarned:  e.CoinsEarned,
		XPEarned:     e.XPEarned,
		CoinsTotal:   e.Totals.Coins,
		XPTotal:      e.Totals.XP,
		Streak:       e.Totals.Streak,
	}

	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), data)
}

// PublishLeaderboardUpdated notifies the channel of the entry's mode and the
// channel of all modes.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := LeaderboardUpdate{Entry: e.Entry, Rank: e.Rank}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, mode := range []string{string(e.Entry.Mode), "all"} {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.leaderboardChannel(mode), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) sessionChannel(id string) string {
	return fmt.Sprintf("%s:pubsub:session:%s", a.prefix, id)
}

func (a *API) leaderboardChannel(mode string) string {
	return fmt.Sprintf("%s:pubsub:leaderboard:%s", a.prefix, mode)
}
