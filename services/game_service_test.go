package services

import (
	"errors"
	"testing"

	"score-sync-system/models"

	"gorm.io/gorm"
)

func TestCreateGameReplacesUnfinalizedGame(t *testing.T) {
	db, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	p2 := mustPlayer(t, envService, env.ID, "Bob")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	first := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID, p2.ID},
	})
	second := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID, p2.ID},
	})

	var gone models.Game
	if err := db.First(&gone, "id = ?", first.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("stale game should be deleted, got %v", err)
	}
	var orphaned int64
	if err := db.Model(&models.PlayerGameScore{}).Where("game_id = ?", first.ID).Count(&orphaned).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if orphaned != 0 {
		t.Fatalf("stale score rows left behind: %d", orphaned)
	}

	var remaining int64
	if err := db.Model(&models.Game{}).Where("environment_id = ? AND finalized = ?", env.ID, false).Count(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected exactly 1 unfinalized game, got %d", remaining)
	}
	if second.RivalryID == nil {
		t.Fatal("new game must resolve its rivalry")
	}
}

func TestCreateGameKeepsFinalizedHistory(t *testing.T) {
	db, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	p2 := mustPlayer(t, envService, env.ID, "Bob")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	first := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID, p2.ID},
	})
	finalized := true
	if _, err := gameService.UpdateGame(env.ID, first.ID, UpdateGameRequest{Finalized: &finalized}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID, p2.ID},
	})

	var kept models.Game
	if err := db.First(&kept, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("finalized game must survive a new game: %v", err)
	}
}

func TestRematchSharesRivalry(t *testing.T) {
	db, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	p2 := mustPlayer(t, envService, env.ID, "Bob")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	finalized := true
	var rivalryID string
	for i := 0; i < 3; i++ {
		game := mustGame(t, gameService, env.ID, CreateGameRequest{
			GameTypeID: gameType.ID,
			PlayerIDs:  []string{p1.ID, p2.ID},
		})
		if game.RivalryID == nil {
			t.Fatalf("game %d has no rivalry", i+1)
		}
		if i == 0 {
			rivalryID = *game.RivalryID
		} else if *game.RivalryID != rivalryID {
			t.Fatalf("rematch %d resolved a different rivalry: %s vs %s", i+1, *game.RivalryID, rivalryID)
		}
		if _, err := gameService.UpdateGame(env.ID, game.ID, UpdateGameRequest{Finalized: &finalized}); err != nil {
			t.Fatalf("finalize game %d: %v", i+1, err)
		}
	}

	var links int64
	if err := db.Model(&models.RivalryGameType{}).Where("rivalry_id = ?", rivalryID).Count(&links).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 1 {
		t.Fatalf("expected 1 game-type link after rematches, got %d", links)
	}
}

func TestCreateGameByPlayerNames(t *testing.T) {
	db, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	mustPlayer(t, envService, env.ID, "Alice")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	game := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID:  gameType.ID,
		PlayerNames: []string{"Alice", "Chen"},
	})
	if len(game.Scores) != 2 {
		t.Fatalf("expected 2 score rows, got %d", len(game.Scores))
	}

	// "Chen" did not exist and was created on the fly.
	var players int64
	if err := db.Model(&models.Player{}).Where("environment_id = ?", env.ID).Count(&players).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if players != 2 {
		t.Fatalf("expected 2 players, got %d", players)
	}
}

func TestCreateGameRejectsForeignPlayers(t *testing.T) {
	_, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	other := mustEnvironment(t, envService, "elsewhere")
	stranger := mustPlayer(t, envService, other.ID, "Mallory")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	_, err := gameService.CreateGame(env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{stranger.ID},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFinalizeIsOneWay(t *testing.T) {
	_, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)
	game := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID},
	})

	finalized := true
	done, err := gameService.UpdateGame(env.ID, game.ID, UpdateGameRequest{Finalized: &finalized})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if done.EndedAt == nil {
		t.Fatal("finalize must stamp ended_at when missing")
	}

	notFinalized := false
	_, err = gameService.UpdateGame(env.ID, game.ID, UpdateGameRequest{Finalized: &notFinalized})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError on un-finalize, got %v", err)
	}
}

func TestSetPlayerOrderValidatesPermutation(t *testing.T) {
	_, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	p2 := mustPlayer(t, envService, env.ID, "Bob")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)
	game := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID, p2.ID},
	})

	var ve *ValidationError
	if _, err := gameService.SetPlayerOrder(env.ID, game.ID, []string{p1.ID}); !errors.As(err, &ve) {
		t.Fatalf("short list: expected ValidationError, got %v", err)
	}
	if _, err := gameService.SetPlayerOrder(env.ID, game.ID, []string{p1.ID, p1.ID}); !errors.As(err, &ve) {
		t.Fatalf("duplicate: expected ValidationError, got %v", err)
	}
	if _, err := gameService.SetPlayerOrder(env.ID, game.ID, []string{p1.ID, "nobody"}); !errors.As(err, &ve) {
		t.Fatalf("stranger: expected ValidationError, got %v", err)
	}

	ordered, err := gameService.SetPlayerOrder(env.ID, game.ID, []string{p2.ID, p1.ID})
	if err != nil {
		t.Fatalf("valid order: %v", err)
	}
	for _, sc := range ordered.Scores {
		if sc.SortOrder == nil {
			t.Fatalf("missing sort order on %s", sc.PlayerID)
		}
		want := 2
		if sc.PlayerID == p2.ID {
			want = 1
		}
		if *sc.SortOrder != want {
			t.Fatalf("player %s: expected position %d, got %d", sc.PlayerID, want, *sc.SortOrder)
		}
	}
}

func TestUpdateGameWinnerMustBeParticipant(t *testing.T) {
	_, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	p2 := mustPlayer(t, envService, env.ID, "Bob")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)
	game := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID: gameType.ID,
		PlayerIDs:  []string{p1.ID},
	})

	winner := p2.ID
	_, err := gameService.UpdateGame(env.ID, game.ID, UpdateGameRequest{WinnerID: &winner})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateGameConditionOverrides(t *testing.T) {
	_, _, envService, gameTypeService, gameService, _, _ := newTestStack(t)

	env := mustEnvironment(t, envService, "porch")
	p1 := mustPlayer(t, envService, env.ID, "Alice")
	gameType := mustGameType(t, gameTypeService, "uno", models.ConditionReachTarget, 200)

	threshold := -30
	game := mustGame(t, gameService, env.ID, CreateGameRequest{
		GameTypeID:     gameType.ID,
		PlayerIDs:      []string{p1.ID},
		ConditionKind:  models.ConditionFallBelowFloor,
		ConditionValue: &threshold,
	})
	if game.ConditionKind != models.ConditionFallBelowFloor || game.ConditionValue != -30 {
		t.Fatalf("overrides not applied: %s %d", game.ConditionKind, game.ConditionValue)
	}

	_, err := gameService.CreateGame(env.ID, CreateGameRequest{
		GameTypeID:    gameType.ID,
		PlayerIDs:     []string{p1.ID},
		ConditionKind: "sudden-death",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown kind, got %v", err)
	}
}
