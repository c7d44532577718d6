package game

import (
	"time"

	appErr "tet-service/pkg/errors"

	"github.com/google/uuid"
)

// GameMove is one entry of the append-only audit trail. An empty Cards slice
// records a pass.
type GameMove struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Cards     []Card    `json:"cards"`
	Timestamp time.Time `json:"timestamp"`
}

// GameState is the authoritative state of one hand. It is owned exclusively
// by the room's runtime; every mutation happens under the runtime lock.
type GameState struct {
	RoomID           uuid.UUID
	Hands            map[uuid.UUID][]Card
	TurnOrder        []uuid.UUID
	CurrentTurnIndex int
	CurrentPile      *Play
	PileOwner        uuid.UUID
	Passed           map[uuid.UUID]struct{}
	FinishOrder      []uuid.UUID
	Log              []GameMove
	Finished         bool
}

// NewGameState deals the shuffled deck to the players and seats the first
// turn on whoever holds the Three of Spades. With three players the deck has
// an undealt card, so the opener may be missing; the first seat leads then.
func NewGameState(roomID uuid.UUID, players []uuid.UUID, deck []Card) (*GameState, error) {
	hands, err := Deal(deck, players)
	if err != nil {
		return nil, err
	}
	state := &GameState{
		RoomID:    roomID,
		Hands:     hands,
		TurnOrder: append([]uuid.UUID(nil), players...),
		Passed:    make(map[uuid.UUID]struct{}),
	}
	state.CurrentTurnIndex = state.openerIndex()
	return state, nil
}

func (g *GameState) openerIndex() int {
	for i, p := range g.TurnOrder {
		for _, c := range g.Hands[p] {
			if c == threeOfSpades {
				return i
			}
		}
	}
	return 0
}

// CurrentPlayer returns the player whose action is awaited.
func (g *GameState) CurrentPlayer() uuid.UUID {
	return g.TurnOrder[g.CurrentTurnIndex]
}

// PlayCards validates and applies a play by playerID. On any rejection the
// state is untouched.
func (g *GameState) PlayCards(playerID uuid.UUID, cards []Card) error {
	if g.Finished {
		return appErr.ErrIncompleteHand
	}
	if g.CurrentPlayer() != playerID {
		return appErr.ErrNotYourTurn
	}
	if !containsAll(g.Hands[playerID], cards) {
		return appErr.ErrInvalidHandReference
	}

	play := Classify(cards)
	if play.Type == PlayInvalid {
		return appErr.ErrIllegalPlay
	}
	if !Beats(play, g.CurrentPile) {
		return appErr.ErrIllegalPlay
	}

	g.Hands[playerID] = removeCards(g.Hands[playerID], cards)
	g.CurrentPile = &play
	g.PileOwner = playerID
	g.Passed = make(map[uuid.UUID]struct{})
	g.Log = append(g.Log, GameMove{PlayerID: playerID, Cards: play.Cards, Timestamp: time.Now()})

	if len(g.Hands[playerID]) == 0 {
		g.FinishOrder = append(g.FinishOrder, playerID)
	}

	if g.playersWithCards() <= 1 {
		g.finishHand()
		return nil
	}

	g.advanceTurn()
	return nil
}

// Pass marks the current player as passed for this round. Passing is illegal
// when the player owes a lead (empty pile).
func (g *GameState) Pass(playerID uuid.UUID) error {
	if g.Finished {
		return appErr.ErrIncompleteHand
	}
	if g.CurrentPlayer() != playerID {
		return appErr.ErrNotYourTurn
	}
	if g.CurrentPile == nil {
		return appErr.ErrIllegalPass
	}

	g.Passed[playerID] = struct{}{}
	g.Log = append(g.Log, GameMove{PlayerID: playerID, Timestamp: time.Now()})

	if g.allOthersPassed() {
		g.clearPile()
		return nil
	}

	g.advanceTurn()
	return nil
}

// allOthersPassed reports whether every player still holding cards, other
// than the pile owner, has passed on the current pile.
func (g *GameState) allOthersPassed() bool {
	for _, p := range g.TurnOrder {
		if p == g.PileOwner || len(g.Hands[p]) == 0 {
			continue
		}
		if _, ok := g.Passed[p]; !ok {
			return false
		}
	}
	return true
}

// clearPile ends the round: the pile owner leads again, or the next player in
// order if the owner already finished.
func (g *GameState) clearPile() {
	g.CurrentPile = nil
	g.Passed = make(map[uuid.UUID]struct{})

	ownerIdx := g.indexOf(g.PileOwner)
	if len(g.Hands[g.PileOwner]) > 0 {
		g.CurrentTurnIndex = ownerIdx
		return
	}
	g.CurrentTurnIndex = g.nextHolderAfter(ownerIdx)
}

func (g *GameState) advanceTurn() {
	g.CurrentTurnIndex = g.nextHolderAfter(g.CurrentTurnIndex)
}

// nextHolderAfter walks the turn order from idx and returns the next player
// still holding cards.
func (g *GameState) nextHolderAfter(idx int) int {
	n := len(g.TurnOrder)
	for step := 1; step <= n; step++ {
		next := (idx + step) % n
		if len(g.Hands[g.TurnOrder[next]]) > 0 {
			return next
		}
	}
	return idx
}

func (g *GameState) playersWithCards() int {
	count := 0
	for _, p := range g.TurnOrder {
		if len(g.Hands[p]) > 0 {
			count++
		}
	}
	return count
}

// finishHand appends the last holder to the finish order and marks the hand
// finished. The last player never has a forced play.
func (g *GameState) finishHand() {
	for _, p := range g.TurnOrder {
		if len(g.Hands[p]) > 0 {
			g.FinishOrder = append(g.FinishOrder, p)
		}
	}
	g.Finished = true
}

func (g *GameState) indexOf(playerID uuid.UUID) int {
	for i, p := range g.TurnOrder {
		if p == playerID {
			return i
		}
	}
	return 0
}

// CardsInPlay counts cards held plus cards already played this hand; it must
// always equal the deal size. A mismatch is a programming defect, not a
// recoverable error.
func (g *GameState) CardsInPlay() int {
	total := 0
	for _, hand := range g.Hands {
		total += len(hand)
	}
	for _, move := range g.Log {
		total += len(move.Cards)
	}
	return total
}
