// services/winner.go
package services

import (
	"sort"

	"score-sync-system/models"
)

// PlayerScore pairs a player id with a current score for winner evaluation.
type PlayerScore struct {
	PlayerID string
	Score    int
}

// EvaluateWinner maps a win condition and the current score set to the
// winning player, if any. For reach-target the highest score >= threshold
// wins; for fall-below-floor the lowest score <= threshold wins. Equal
// winning scores break by lowest player id, so the result is deterministic
// for any input order.
func EvaluateWinner(conditionKind string, threshold int, scores []PlayerScore) (string, bool) {
	var qualifiers []PlayerScore
	for _, ps := range scores {
		switch conditionKind {
		case models.ConditionReachTarget:
			if ps.Score >= threshold {
				qualifiers = append(qualifiers, ps)
			}
		case models.ConditionFallBelowFloor:
			if ps.Score <= threshold {
				qualifiers = append(qualifiers, ps)
			}
		}
	}
	if len(qualifiers) == 0 {
		return "", false
	}

	sort.Slice(qualifiers, func(i, j int) bool {
		a, b := qualifiers[i], qualifiers[j]
		if a.Score != b.Score {
			if conditionKind == models.ConditionFallBelowFloor {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.PlayerID < b.PlayerID
	})

	return qualifiers[0].PlayerID, true
}
