package services

import (
	"testing"

	"score-sync-system/models"
)

type statsFixture struct {
	gameService  *GameService
	scoreService *ScoreService
	stats        *RivalryStatsService
	env          *models.Environment
	gameType     *models.GameTypeDefinition
	p1           *models.Player
	p2           *models.Player
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	_, _, envService, gameTypeService, gameService, scoreService, statsService := newTestStack(t)

	env := mustEnvironment(t, envService, "clubhouse")
	return &statsFixture{
		gameService:  gameService,
		scoreService: scoreService,
		stats:        statsService,
		env:          env,
		gameType:     mustGameType(t, gameTypeService, "rummy", models.ConditionReachTarget, 500),
		p1:           mustPlayer(t, envService, env.ID, "Alice"),
		p2:           mustPlayer(t, envService, env.ID, "Bob"),
	}
}

// playGame runs one full game to finalization: scores are applied as single
// deltas and the finalize transition triggers the recompute.
func (f *statsFixture) playGame(t *testing.T, score1, score2 int) *models.Game {
	t.Helper()
	game := mustGame(t, f.gameService, f.env.ID, CreateGameRequest{
		GameTypeID: f.gameType.ID,
		PlayerIDs:  []string{f.p1.ID, f.p2.ID},
	})
	if _, err := f.scoreService.ApplyDeltas(f.env.ID, game.ID, []ScoreDelta{
		{PlayerID: f.p1.ID, Delta: score1},
		{PlayerID: f.p2.ID, Delta: score2},
	}); err != nil {
		t.Fatalf("apply scores: %v", err)
	}
	finalized := true
	done, err := f.gameService.UpdateGame(f.env.ID, game.ID, UpdateGameRequest{Finalized: &finalized})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return done
}

func (f *statsFixture) statsOf(t *testing.T, rivalryID, playerID string) models.RivalryPlayerStats {
	t.Helper()
	var row models.RivalryPlayerStats
	err := f.stats.DB.Where("rivalry_id = ? AND player_id = ? AND game_type_id = ?",
		rivalryID, playerID, f.gameType.ID).First(&row).Error
	if err != nil {
		t.Fatalf("load stats for %s: %v", playerID, err)
	}
	return row
}

func TestFinalizeComputesMargins(t *testing.T) {
	f := newStatsFixture(t)

	game := f.playGame(t, 510, 480)
	if game.RivalryID == nil {
		t.Fatal("game has no rivalry")
	}

	winner := f.statsOf(t, *game.RivalryID, f.p1.ID)
	if winner.TotalGames != 1 || winner.Wins != 1 || winner.Losses != 0 {
		t.Fatalf("winner counts wrong: %+v", winner)
	}
	if winner.MinWinMargin == nil || *winner.MinWinMargin != 30 {
		t.Fatalf("expected win margin 30, got %v", winner.MinWinMargin)
	}
	if winner.MaxWinMargin == nil || *winner.MaxWinMargin != 30 {
		t.Fatalf("expected max win margin 30, got %v", winner.MaxWinMargin)
	}
	if winner.MinLossMargin == nil || *winner.MinLossMargin != 0 {
		t.Fatalf("player with games but no losses gets 0 loss margin, got %v", winner.MinLossMargin)
	}
	if winner.Last10Results != "W" {
		t.Fatalf("expected results W, got %q", winner.Last10Results)
	}

	loser := f.statsOf(t, *game.RivalryID, f.p2.ID)
	if loser.TotalGames != 1 || loser.Wins != 0 || loser.Losses != 1 {
		t.Fatalf("loser counts wrong: %+v", loser)
	}
	if loser.MinLossMargin == nil || *loser.MinLossMargin != 30 {
		t.Fatalf("expected loss margin 30, got %v", loser.MinLossMargin)
	}
	if loser.MinWinMargin == nil || *loser.MinWinMargin != 0 {
		t.Fatalf("player with games but no wins gets 0 win margin, got %v", loser.MinWinMargin)
	}
	if loser.Last10Results != "L" {
		t.Fatalf("expected results L, got %q", loser.Last10Results)
	}
}

func TestMarginExtremesAcrossGames(t *testing.T) {
	f := newStatsFixture(t)

	f.playGame(t, 505, 490) // margin 15
	game := f.playGame(t, 560, 480) // margin 80

	winner := f.statsOf(t, *game.RivalryID, f.p1.ID)
	if winner.Wins != 2 {
		t.Fatalf("expected 2 wins, got %d", winner.Wins)
	}
	if winner.MinWinMargin == nil || *winner.MinWinMargin != 15 {
		t.Fatalf("expected min win margin 15, got %v", winner.MinWinMargin)
	}
	if winner.MaxWinMargin == nil || *winner.MaxWinMargin != 80 {
		t.Fatalf("expected max win margin 80, got %v", winner.MaxWinMargin)
	}

	loser := f.statsOf(t, *game.RivalryID, f.p2.ID)
	if loser.MinLossMargin == nil || *loser.MinLossMargin != 15 {
		t.Fatalf("expected min loss margin 15, got %v", loser.MinLossMargin)
	}
	if loser.MaxLossMargin == nil || *loser.MaxLossMargin != 80 {
		t.Fatalf("expected max loss margin 80, got %v", loser.MaxLossMargin)
	}
}

func TestLast10ResultsCapped(t *testing.T) {
	f := newStatsFixture(t)

	var game *models.Game
	for i := 0; i < 11; i++ {
		game = f.playGame(t, 510, 480)
	}
	// Most recent game: the other player wins.
	game = f.playGame(t, 480, 510)

	row := f.statsOf(t, *game.RivalryID, f.p1.ID)
	if row.TotalGames != 12 {
		t.Fatalf("expected 12 total games, got %d", row.TotalGames)
	}
	if row.Last10Results != "WWWWWWWWWL" {
		t.Fatalf("expected WWWWWWWWWL, got %q", row.Last10Results)
	}
}

func TestFinalizedGameWithoutWinnerCountsTotalOnly(t *testing.T) {
	f := newStatsFixture(t)

	// Nobody reaches the threshold before finalization.
	game := mustGame(t, f.gameService, f.env.ID, CreateGameRequest{
		GameTypeID: f.gameType.ID,
		PlayerIDs:  []string{f.p1.ID, f.p2.ID},
	})
	if _, err := f.scoreService.ApplyDeltas(f.env.ID, game.ID, []ScoreDelta{
		{PlayerID: f.p1.ID, Delta: 120},
		{PlayerID: f.p2.ID, Delta: 90},
	}); err != nil {
		t.Fatalf("apply scores: %v", err)
	}
	finalized := true
	done, err := f.gameService.UpdateGame(f.env.ID, game.ID, UpdateGameRequest{Finalized: &finalized})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	row := f.statsOf(t, *done.RivalryID, f.p1.ID)
	if row.TotalGames != 1 || row.Wins != 0 || row.Losses != 0 {
		t.Fatalf("no-winner game must count in total only: %+v", row)
	}
	if row.Last10Results != "" {
		t.Fatalf("no-winner game must not appear in results, got %q", row.Last10Results)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	f := newStatsFixture(t)

	game := f.playGame(t, 510, 480)
	before := f.statsOf(t, *game.RivalryID, f.p1.ID)

	// Sweeping over already-consistent rows changes nothing.
	if err := f.stats.RecomputeAll(); err != nil {
		t.Fatalf("recompute all: %v", err)
	}
	after := f.statsOf(t, *game.RivalryID, f.p1.ID)

	if before.ID != after.ID {
		t.Fatal("recompute must update the existing row, not create a new one")
	}
	if after.TotalGames != before.TotalGames || after.Wins != before.Wins ||
		after.Losses != before.Losses || after.Last10Results != before.Last10Results {
		t.Fatalf("recompute drifted: before %+v after %+v", before, after)
	}
}

func TestMarginExtremesNullVersusZero(t *testing.T) {
	min, max := marginExtremes(nil, 0)
	if min != nil || max != nil {
		t.Fatal("no games at all must leave margins null")
	}

	min, max = marginExtremes(nil, 3)
	if min == nil || max == nil || *min != 0 || *max != 0 {
		t.Fatalf("games without wins must yield 0, got %v/%v", min, max)
	}
}
