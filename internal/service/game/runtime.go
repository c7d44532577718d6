package game

import (
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"sort"
	"sync"
	"time"

	"tet-service/internal/config"
	"tet-service/internal/model"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/logger"
	"tet-service/pkg/utils/random"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

const subscriberBuffer = 8

// TimeoutPolicy values accepted from config.
const (
	TimeoutAutoPass = "autopass"
	TimeoutPause    = "pause"
)

type SeatState struct {
	Position  int       `json:"position"`
	UserID    uuid.UUID `json:"userId"`
	Nickname  string    `json:"nickname"`
	Ready     bool      `json:"ready"`
	CardsLeft int       `json:"cardsLeft"`
	Finished  bool      `json:"finished"`
}

// RoomState is the broadcastable per-viewer snapshot. Other players' hands
// are redacted to card counts; only MyCards carries real cards.
type RoomState struct {
	RoomID      uuid.UUID   `json:"roomId"`
	Phase       Phase       `json:"phase"`
	StakeLevel  string      `json:"stakeLevel"`
	TurnPlayer  uuid.UUID   `json:"turnPlayer,omitempty"`
	Countdown   int         `json:"countdown"`
	Pile        *Play       `json:"pile,omitempty"`
	PileOwner   uuid.UUID   `json:"pileOwner,omitempty"`
	Passed      []uuid.UUID `json:"passed"`
	FinishOrder []uuid.UUID `json:"finishOrder"`
	Seats       []SeatState `json:"seats"`
	MyCards     []Card      `json:"myCards"`
	Allowed     []string    `json:"allowedActions"`
	Result      *GameResult `json:"result,omitempty"`
}

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// RoomRuntime owns the single authoritative GameState of one room. Every
// player action is applied under mu, so concurrent actions on the same room
// serialize in arrival order while distinct rooms proceed in parallel.
type RoomRuntime struct {
	roomID     uuid.UUID
	stakeLevel string
	betUnit    int64
	cfg        config.GameConfig

	phase      Phase
	seats      []SeatState
	seatByUser map[uuid.UUID]int
	state      *GameState
	result     *GameResult

	subscribers  map[uuid.UUID]chan OutgoingMessage
	seq          int64
	timer        *time.Timer
	turnDeadline time.Time

	mu sync.Mutex

	onStart  func(*RoomRuntime)
	onFinish func(*RoomRuntime, *GameResult)
}

func newRoomRuntime(room model.Room, seats []model.RoomSeat, cfg config.GameConfig, betUnit int64, onStart func(*RoomRuntime), onFinish func(*RoomRuntime, *GameResult)) *RoomRuntime {
	rt := &RoomRuntime{
		roomID:      room.ID,
		stakeLevel:  room.StakeLevel,
		betUnit:     betUnit,
		cfg:         cfg,
		phase:       PhaseWaiting,
		seatByUser:  make(map[uuid.UUID]int),
		subscribers: make(map[uuid.UUID]chan OutgoingMessage),
		onStart:     onStart,
		onFinish:    onFinish,
	}

	sort.Slice(seats, func(i, j int) bool { return seats[i].Position < seats[j].Position })
	for _, seat := range seats {
		if seat.PlayerID == nil {
			continue
		}
		rt.seatByUser[*seat.PlayerID] = len(rt.seats)
		rt.seats = append(rt.seats, SeatState{
			Position: seat.Position,
			UserID:   *seat.PlayerID,
			Ready:    seat.IsReady,
		})
	}
	return rt
}

func (rt *RoomRuntime) Subscribe(userID uuid.UUID) chan OutgoingMessage {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ch := make(chan OutgoingMessage, subscriberBuffer)
	rt.subscribers[userID] = ch
	rt.pushStateLocked(userID)
	return ch
}

func (rt *RoomRuntime) Unsubscribe(userID uuid.UUID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if ch, ok := rt.subscribers[userID]; ok {
		delete(rt.subscribers, userID)
		close(ch)
	}
}

// HandleAction dispatches an inbound websocket action. Errors are returned to
// the caller for delivery to the acting player only.
func (rt *RoomRuntime) HandleAction(userID uuid.UUID, action string, data json.RawMessage) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.seatByUser[userID]; !ok {
		return appErr.ErrRoomAccessDenied
	}

	switch action {
	case "ready":
		return rt.handleReadyLocked(userID)
	case "start":
		return rt.startHandLocked()
	case "play":
		var payload struct {
			Cards []Card `json:"cards"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return appErr.ErrIllegalPlay
		}
		return rt.handlePlayLocked(userID, payload.Cards)
	case "pass":
		return rt.handlePassLocked(userID)
	case "rejoin":
		rt.pushStateLocked(userID)
		return nil
	case "ping":
		rt.pushMessageLocked(userID, OutgoingMessage{Type: "pong", Seq: rt.nextSeqLocked()})
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

// StartHand begins a hand on behalf of the REST surface.
func (rt *RoomRuntime) StartHand() (RoomState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.startHandLocked(); err != nil {
		return RoomState{}, err
	}
	return rt.exportStateLocked(uuid.Nil), nil
}

// SubmitPlay applies a play and returns the acting player's view of the new
// state. Rejected actions leave state untouched.
func (rt *RoomRuntime) SubmitPlay(userID uuid.UUID, cards []Card) (RoomState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.handlePlayLocked(userID, cards); err != nil {
		return RoomState{}, err
	}
	return rt.exportStateLocked(userID), nil
}

func (rt *RoomRuntime) SubmitPass(userID uuid.UUID) (RoomState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.handlePassLocked(userID); err != nil {
		return RoomState{}, err
	}
	return rt.exportStateLocked(userID), nil
}

// Snapshot returns the last fully-applied state as seen by userID. It is the
// resync path for reconnecting clients.
func (rt *RoomRuntime) Snapshot(userID uuid.UUID) RoomState {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.exportStateLocked(userID)
}

func (rt *RoomRuntime) handleReadyLocked(userID uuid.UUID) error {
	if rt.phase == PhasePlaying {
		return appErr.ErrHandInProgress
	}
	// Readying up after a finished hand re-arms the room.
	rt.phase = PhaseWaiting

	idx := rt.seatByUser[userID]
	if rt.seats[idx].Ready {
		return nil
	}
	rt.seats[idx].Ready = true

	if rt.allReadyLocked() && len(rt.seats) >= rt.cfg.MinPlayers {
		return rt.startHandLocked()
	}
	rt.broadcastStateLocked()
	return nil
}

func (rt *RoomRuntime) allReadyLocked() bool {
	if len(rt.seats) == 0 {
		return false
	}
	for _, seat := range rt.seats {
		if !seat.Ready {
			return false
		}
	}
	return true
}

func (rt *RoomRuntime) startHandLocked() error {
	if rt.phase == PhasePlaying {
		return appErr.ErrHandInProgress
	}

	players := make([]uuid.UUID, 0, len(rt.seats))
	for _, seat := range rt.seats {
		if seat.Ready {
			players = append(players, seat.UserID)
		}
	}
	if len(players) < rt.cfg.MinPlayers {
		return appErr.ErrInsufficientPlayers
	}

	rng := mrand.New(mrand.NewSource(random.Seed()))
	deck := ShuffleDeck(NewDeck(), rng)
	state, err := NewGameState(rt.roomID, players, deck)
	if err != nil {
		return err
	}
	rt.state = state
	rt.result = nil
	rt.phase = PhasePlaying
	for i := range rt.seats {
		rt.seats[i].Finished = false
	}

	logger.Log.Info("hand started",
		zap.String("roomID", rt.roomID.String()),
		zap.Int("players", len(players)),
	)

	// A dealt instant win ends the hand before anyone plays.
	if winners := rt.instantWinnersLocked(); len(winners) > 0 {
		rt.state.FinishOrder = rt.rankInstantWinLocked(winners)
		rt.state.Finished = true
		rt.finishHandLocked()
		return nil
	}

	rt.resetTurnTimerLocked()
	rt.broadcastStateLocked()
	if rt.onStart != nil {
		go rt.onStart(rt)
	}
	return nil
}

func (rt *RoomRuntime) instantWinnersLocked() []uuid.UUID {
	var winners []uuid.UUID
	for _, p := range rt.state.TurnOrder {
		if IsInstantWin(rt.state.Hands[p]) {
			winners = append(winners, p)
		}
	}
	return winners
}

// rankInstantWinLocked orders winners first (seat order), then the rest by
// ascending cards held.
func (rt *RoomRuntime) rankInstantWinLocked(winners []uuid.UUID) []uuid.UUID {
	isWinner := make(map[uuid.UUID]bool, len(winners))
	for _, w := range winners {
		isWinner[w] = true
	}
	rest := make([]uuid.UUID, 0, len(rt.state.TurnOrder))
	for _, p := range rt.state.TurnOrder {
		if !isWinner[p] {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return len(rt.state.Hands[rest[i]]) < len(rt.state.Hands[rest[j]])
	})
	return append(append([]uuid.UUID(nil), winners...), rest...)
}

func (rt *RoomRuntime) handlePlayLocked(userID uuid.UUID, cards []Card) error {
	if rt.phase != PhasePlaying {
		return appErr.ErrIncompleteHand
	}
	if err := rt.state.PlayCards(userID, cards); err != nil {
		return err
	}

	rt.markFinishedSeatsLocked()

	if rt.state.Finished {
		rt.finishHandLocked()
		return nil
	}

	rt.resetTurnTimerLocked()
	rt.broadcastStateLocked()
	return nil
}

func (rt *RoomRuntime) handlePassLocked(userID uuid.UUID) error {
	if rt.phase != PhasePlaying {
		return appErr.ErrIncompleteHand
	}
	if err := rt.state.Pass(userID); err != nil {
		return err
	}

	rt.resetTurnTimerLocked()
	rt.broadcastStateLocked()
	return nil
}

func (rt *RoomRuntime) markFinishedSeatsLocked() {
	for _, p := range rt.state.FinishOrder {
		if idx, ok := rt.seatByUser[p]; ok {
			rt.seats[idx].Finished = true
		}
	}
}

func (rt *RoomRuntime) finishHandLocked() {
	rt.cancelTimerLocked()
	rt.markFinishedSeatsLocked()

	settlement, err := SettleHand(rt.state.FinishOrder, len(rt.state.TurnOrder), rt.betUnit, rt.cfg.PayoutMultiples)
	if err != nil {
		// The finish order is produced by the state machine; failing here
		// means the room state is corrupt and must be torn down.
		logger.Log.Error("settlement failed on finished hand",
			zap.String("roomID", rt.roomID.String()),
			zap.Error(err),
		)
		return
	}
	rt.result = &GameResult{
		RoomID:     rt.roomID,
		Rankings:   append([]uuid.UUID(nil), rt.state.FinishOrder...),
		Settlement: settlement,
		Log:        append([]GameMove(nil), rt.state.Log...),
	}
	rt.phase = PhaseEnded
	for i := range rt.seats {
		rt.seats[i].Ready = false
	}

	rt.broadcastStateLocked()
	rt.broadcastMessageLocked("result", rt.result)

	if rt.onFinish != nil {
		go rt.onFinish(rt, rt.result)
	}
}

func (rt *RoomRuntime) pushStateLocked(userID uuid.UUID) {
	rt.pushMessageLocked(userID, OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: rt.exportStateLocked(userID),
	})
}

func (rt *RoomRuntime) broadcastStateLocked() {
	seq := rt.nextSeqLocked()
	for uid, ch := range rt.subscribers {
		msg := OutgoingMessage{Type: "state", Seq: seq, Data: rt.exportStateLocked(uid)}
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("subscriber channel full, dropping state",
				zap.String("userID", uid.String()),
				zap.String("roomID", rt.roomID.String()),
			)
		}
	}
}

func (rt *RoomRuntime) broadcastMessageLocked(msgType string, data interface{}) {
	seq := rt.nextSeqLocked()
	for uid, ch := range rt.subscribers {
		select {
		case ch <- OutgoingMessage{Type: msgType, Seq: seq, Data: data}:
		default:
			logger.Log.Warn("subscriber channel full, dropping message",
				zap.String("userID", uid.String()),
				zap.String("roomID", rt.roomID.String()),
			)
		}
	}
}

func (rt *RoomRuntime) pushMessageLocked(userID uuid.UUID, msg OutgoingMessage) {
	if ch, ok := rt.subscribers[userID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("subscriber channel full, dropping message",
				zap.String("userID", userID.String()),
				zap.String("roomID", rt.roomID.String()),
			)
		}
	}
}

func (rt *RoomRuntime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

func (rt *RoomRuntime) exportStateLocked(viewer uuid.UUID) RoomState {
	state := RoomState{
		RoomID:     rt.roomID,
		Phase:      rt.phase,
		StakeLevel: rt.stakeLevel,
		Countdown:  rt.countdownSecondsLocked(),
		Passed:     []uuid.UUID{},
		MyCards:    []Card{},
		Allowed:    rt.allowedActionsLocked(viewer),
		Result:     rt.result,
	}

	seats := make([]SeatState, len(rt.seats))
	copy(seats, rt.seats)

	if rt.state != nil {
		state.TurnPlayer = rt.state.CurrentPlayer()
		state.Pile = rt.state.CurrentPile
		state.PileOwner = rt.state.PileOwner
		state.FinishOrder = append([]uuid.UUID(nil), rt.state.FinishOrder...)
		for p := range rt.state.Passed {
			state.Passed = append(state.Passed, p)
		}
		for i := range seats {
			seats[i].CardsLeft = len(rt.state.Hands[seats[i].UserID])
		}
		if hand, ok := rt.state.Hands[viewer]; ok {
			state.MyCards = append([]Card(nil), hand...)
		}
	}
	state.Seats = seats
	return state
}

func (rt *RoomRuntime) allowedActionsLocked(viewer uuid.UUID) []string {
	idx, seated := rt.seatByUser[viewer]
	if !seated {
		return nil
	}

	switch rt.phase {
	case PhaseWaiting:
		if rt.seats[idx].Ready {
			return []string{"start"}
		}
		return []string{"ready"}
	case PhasePlaying:
		if rt.state != nil && rt.state.CurrentPlayer() == viewer {
			if rt.state.CurrentPile == nil {
				return []string{"play"}
			}
			return []string{"play", "pass"}
		}
		return nil
	case PhaseEnded:
		return []string{"ready"}
	default:
		return nil
	}
}

func (rt *RoomRuntime) resetTurnTimerLocked() {
	rt.cancelTimerLocked()
	if rt.cfg.TurnSeconds <= 0 {
		return
	}
	d := time.Duration(rt.cfg.TurnSeconds) * time.Second
	deadline := time.Now().Add(d)
	rt.turnDeadline = deadline
	rt.timer = time.AfterFunc(d, func() { rt.onTurnTimeout(deadline) })
}

// onTurnTimeout applies the configured policy to a stalled turn: auto-pass
// (or auto-lead the lowest single when passing is illegal), or pause and wait
// for reconnection. A fired timer may lose the race against a real action
// that already rescheduled the clock, so the callback only acts if its
// deadline is still the live one.
func (rt *RoomRuntime) onTurnTimeout(deadline time.Time) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.turnDeadline.Equal(deadline) {
		return
	}
	if rt.phase != PhasePlaying || rt.state == nil {
		return
	}
	if rt.cfg.TimeoutPolicy == TimeoutPause {
		rt.broadcastStateLocked()
		return
	}

	current := rt.state.CurrentPlayer()
	logger.Log.Warn("turn timeout",
		zap.String("roomID", rt.roomID.String()),
		zap.String("userID", current.String()),
	)

	var err error
	if rt.state.CurrentPile == nil {
		hand := rt.state.Hands[current]
		lowest := hand[0]
		for _, c := range hand[1:] {
			if c.Rank < lowest.Rank || (c.Rank == lowest.Rank && c.Suit < lowest.Suit) {
				lowest = c
			}
		}
		err = rt.handlePlayLocked(current, []Card{lowest})
	} else {
		err = rt.handlePassLocked(current)
	}
	if err != nil {
		logger.Log.Error("timeout action failed",
			zap.String("roomID", rt.roomID.String()),
			zap.Error(err),
		)
	}
}

func (rt *RoomRuntime) cancelTimerLocked() {
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
	rt.turnDeadline = time.Time{}
}

func (rt *RoomRuntime) countdownSecondsLocked() int {
	if rt.turnDeadline.IsZero() {
		return 0
	}
	diff := time.Until(rt.turnDeadline)
	if diff <= 0 {
		return 0
	}
	return int(diff / time.Second)
}
