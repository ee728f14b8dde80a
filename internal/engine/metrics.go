package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	choicesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_choices_submitted_total",
		Help: "Choices submitted, by outcome.",
	}, []string{"outcome"})

	saveOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_save_operations_total",
		Help: "Save store operations, by operation and outcome.",
	}, []string{"operation", "outcome"})

	miniGameResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_engine_minigame_results_total",
		Help: "Mini-game results, by game and success.",
	}, []string{"game_id", "success"})

	playTimeSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_engine_play_time_seconds_total",
		Help: "Accumulated play time across sessions.",
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func observeMiniGame(gameID string, success bool) {
	miniGameResults.WithLabelValues(gameID, strconv.FormatBool(success)).Inc()
}
