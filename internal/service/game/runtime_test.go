package game

import (
	"sync"
	"testing"
	"time"

	"tet-service/internal/config"
	"tet-service/internal/model"
	appErr "tet-service/pkg/errors"

	"github.com/google/uuid"
)

func newTestRuntime(players []uuid.UUID, cfg config.GameConfig) *RoomRuntime {
	room := model.Room{
		ID:         uuid.New(),
		Name:       "table",
		StakeLevel: "BAN1",
		Status:     "waiting",
		MaxPlayers: len(players),
	}
	seats := make([]model.RoomSeat, len(players))
	for i := range players {
		p := players[i]
		seats[i] = model.RoomSeat{RoomID: room.ID, Position: i, PlayerID: &p}
	}
	return newRoomRuntime(room, seats, cfg, 1_000, nil, nil)
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{MinPlayers: 2, TimeoutPolicy: TimeoutAutoPass}
}

func TestReadyAutoStartsHand(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())

	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if rt.Snapshot(p1).Phase != PhaseWaiting {
		t.Fatalf("hand must not start before everyone is ready")
	}

	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}
	state := rt.Snapshot(p1)
	if state.Phase != PhasePlaying {
		t.Fatalf("hand must start once everyone is ready, phase %s", state.Phase)
	}
	if len(state.MyCards) != 26 {
		t.Fatalf("expected 26 cards dealt, got %d", len(state.MyCards))
	}
}

func TestStartRejectsUnreadyRoom(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())

	if err := rt.HandleAction(p1, "start", nil); err != appErr.ErrInsufficientPlayers {
		t.Fatalf("expected ErrInsufficientPlayers, got %v", err)
	}
}

func TestUnseatedActorRejected(t *testing.T) {
	rt := newTestRuntime([]uuid.UUID{uuid.New(), uuid.New()}, testGameConfig())

	if err := rt.HandleAction(uuid.New(), "ready", nil); err != appErr.ErrRoomAccessDenied {
		t.Fatalf("expected ErrRoomAccessDenied, got %v", err)
	}
}

func TestSnapshotRedactsOtherHands(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())
	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	s1 := rt.Snapshot(p1)
	s2 := rt.Snapshot(p2)
	if len(s1.MyCards) != 26 || len(s2.MyCards) != 26 {
		t.Fatalf("each viewer sees only their own full hand")
	}
	for _, seat := range s1.Seats {
		if seat.CardsLeft != 26 {
			t.Fatalf("seat %d card count %d, want 26", seat.Position, seat.CardsLeft)
		}
	}

	stranger := rt.Snapshot(uuid.New())
	if len(stranger.MyCards) != 0 {
		t.Fatalf("unseated viewer must not receive cards")
	}
	if stranger.Allowed != nil {
		t.Fatalf("unseated viewer must have no allowed actions")
	}
}

func TestHandFinishProducesResult(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())
	ch := rt.Subscribe(p1)

	// Inject an endgame position directly; the shuffle path is covered above.
	rt.mu.Lock()
	rt.phase = PhasePlaying
	rt.state = newStateForTest([]uuid.UUID{p1, p2}, map[uuid.UUID][]Card{
		p1: {card(RankThree, Spades)},
		p2: {card(RankFour, Hearts), card(RankFive, Hearts)},
	})
	rt.mu.Unlock()

	state, err := rt.SubmitPlay(p1, []Card{card(RankThree, Spades)})
	if err != nil {
		t.Fatalf("final play: %v", err)
	}
	if state.Phase != PhaseEnded {
		t.Fatalf("phase %s, want ended", state.Phase)
	}
	if state.Result == nil {
		t.Fatalf("finished hand must carry a result")
	}
	if state.Result.Settlement[p1] != 1_000 || state.Result.Settlement[p2] != -1_000 {
		t.Fatalf("unexpected settlement %v", state.Result.Settlement)
	}
	for _, seat := range state.Seats {
		if seat.Ready {
			t.Fatalf("ready flags must reset after the hand")
		}
	}

	sawResult := false
	for len(ch) > 0 {
		if msg := <-ch; msg.Type == "result" {
			sawResult = true
		}
	}
	if !sawResult {
		t.Fatalf("subscribers must receive the result event")
	}
}

func TestReadyAfterFinishStartsNewHand(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())

	rt.mu.Lock()
	rt.phase = PhasePlaying
	rt.state = newStateForTest([]uuid.UUID{p1, p2}, map[uuid.UUID][]Card{
		p1: {card(RankThree, Spades)},
		p2: {card(RankFour, Hearts)},
	})
	rt.mu.Unlock()

	if _, err := rt.SubmitPlay(p1, []Card{card(RankThree, Spades)}); err != nil {
		t.Fatalf("final play: %v", err)
	}
	if rt.Snapshot(p1).Phase != PhaseEnded {
		t.Fatalf("hand must end")
	}

	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	state := rt.Snapshot(p1)
	if state.Phase != PhasePlaying {
		t.Fatalf("rematch must start once everyone readies up, phase %s", state.Phase)
	}
	if len(state.MyCards) != 26 {
		t.Fatalf("rematch must deal a fresh hand, got %d cards", len(state.MyCards))
	}
	if state.Result != nil {
		t.Fatalf("stale result must clear on a new hand")
	}
}

func TestRejectedActionDoesNotBroadcast(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())
	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	ch := rt.Subscribe(p2)
	for len(ch) > 0 {
		<-ch
	}

	before := rt.Snapshot(p2)
	turnHolder := before.TurnPlayer
	var outOfTurn uuid.UUID
	if turnHolder == p1 {
		outOfTurn = p2
	} else {
		outOfTurn = p1
	}

	if _, err := rt.SubmitPass(outOfTurn); err != appErr.ErrNotYourTurn {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if len(ch) != 0 {
		t.Fatalf("rejected action must not broadcast state")
	}
	after := rt.Snapshot(p2)
	if after.TurnPlayer != turnHolder {
		t.Fatalf("rejected action moved the turn")
	}
}

func TestSubscriberOverflowDropsInsteadOfBlocking(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())
	ch := rt.Subscribe(p1)

	rt.mu.Lock()
	for i := 0; i < subscriberBuffer*3; i++ {
		rt.broadcastStateLocked()
	}
	rt.mu.Unlock()

	if len(ch) > subscriberBuffer {
		t.Fatalf("channel holds %d messages, cap is %d", len(ch), subscriberBuffer)
	}
}

func TestStaleTimerCallbackIsIgnored(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	cfg := testGameConfig()
	cfg.TurnSeconds = 30
	rt := newTestRuntime([]uuid.UUID{p1, p2}, cfg)
	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	before := rt.Snapshot(p1)

	// A callback armed for an earlier turn carries that turn's deadline; it
	// must not act once a real action rescheduled the clock.
	rt.onTurnTimeout(time.Now().Add(-time.Minute))

	after := rt.Snapshot(p1)
	if after.TurnPlayer != before.TurnPlayer {
		t.Fatalf("stale timer callback moved the turn")
	}
	rt.mu.Lock()
	moves := len(rt.state.Log)
	rt.mu.Unlock()
	if moves != 0 {
		t.Fatalf("stale timer callback recorded %d moves", moves)
	}
}

func TestTimeoutAutoPlaysForStalledLeader(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	cfg := testGameConfig()
	cfg.TurnSeconds = 1
	rt := newTestRuntime([]uuid.UUID{p1, p2}, cfg)

	rt.mu.Lock()
	rt.phase = PhasePlaying
	rt.state = newStateForTest([]uuid.UUID{p1, p2}, map[uuid.UUID][]Card{
		p1: {card(RankSeven, Clubs), card(RankThree, Spades)},
		p2: {card(RankFour, Hearts), card(RankNine, Diamonds)},
	})
	rt.resetTurnTimerLocked()
	rt.mu.Unlock()

	deadline := time.Now().Add(3 * time.Second)
	for {
		rt.mu.Lock()
		moves := len(rt.state.Log)
		var first GameMove
		if moves > 0 {
			first = rt.state.Log[0]
		}
		rt.mu.Unlock()

		if moves > 0 {
			if first.PlayerID != p1 || len(first.Cards) != 1 || first.Cards[0] != card(RankThree, Spades) {
				t.Fatalf("timeout must lead the stalled player's lowest single, got %+v", first)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("stalled leader was never auto-played")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestTimeoutPausePolicyHoldsTurn(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	cfg := testGameConfig()
	cfg.TurnSeconds = 1
	cfg.TimeoutPolicy = TimeoutPause
	rt := newTestRuntime([]uuid.UUID{p1, p2}, cfg)

	rt.mu.Lock()
	rt.phase = PhasePlaying
	rt.state = newStateForTest([]uuid.UUID{p1, p2}, map[uuid.UUID][]Card{
		p1: {card(RankSeven, Clubs)},
		p2: {card(RankFour, Hearts)},
	})
	rt.resetTurnTimerLocked()
	rt.mu.Unlock()

	time.Sleep(1500 * time.Millisecond)

	state := rt.Snapshot(p1)
	if state.TurnPlayer != p1 {
		t.Fatalf("pause policy must hold the turn, moved to %s", state.TurnPlayer)
	}
	rt.mu.Lock()
	moves := len(rt.state.Log)
	rt.mu.Unlock()
	if moves != 0 {
		t.Fatalf("pause policy must not act for the player, recorded %d moves", moves)
	}
}

func TestConcurrentActionsSerialize(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rt := newTestRuntime([]uuid.UUID{p1, p2}, testGameConfig())
	if err := rt.HandleAction(p1, "ready", nil); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := rt.HandleAction(p2, "ready", nil); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, p := range []uuid.UUID{p1, p2} {
			wg.Add(1)
			go func(p uuid.UUID) {
				defer wg.Done()
				rt.SubmitPass(p) // rejections are expected and harmless
				rt.Snapshot(p)
			}(p)
		}
	}
	wg.Wait()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if got := rt.state.CardsInPlay(); got != 52 {
		t.Fatalf("card conservation broken under concurrency: %d", got)
	}
}
