package game

import (
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"sort"

	appErr "tet-service/pkg/errors"

	"github.com/google/uuid"
)

// Suit of a playing card. Suits carry no strength in this variant; they only
// matter for identity (and for finding the Three of Spades leader).
type Suit int

const (
	Spades Suit = iota
	Clubs
	Diamonds
	Hearts
)

var suitNames = map[Suit]string{
	Spades:   "SPADES",
	Clubs:    "CLUBS",
	Diamonds: "DIAMONDS",
	Hearts:   "HEARTS",
}

func (s Suit) String() string { return suitNames[s] }

// Rank of a playing card. Values follow gameplay strength: Three is the
// weakest at 3 and Two the strongest at 15.
type Rank int

const (
	RankThree Rank = iota + 3
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce
	RankTwo
)

var rankNames = map[Rank]string{
	RankThree: "THREE",
	RankFour:  "FOUR",
	RankFive:  "FIVE",
	RankSix:   "SIX",
	RankSeven: "SEVEN",
	RankEight: "EIGHT",
	RankNine:  "NINE",
	RankTen:   "TEN",
	RankJack:  "JACK",
	RankQueen: "QUEEN",
	RankKing:  "KING",
	RankAce:   "ACE",
	RankTwo:   "TWO",
}

func (r Rank) String() string { return rankNames[r] }

// Card is an immutable suit/rank value.
type Card struct {
	Suit Suit
	Rank Rank
}

func (c Card) String() string {
	return fmt.Sprintf("%s_of_%s", c.Rank, c.Suit)
}

type cardJSON struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Suit: c.Suit.String(), Rank: c.Rank.String()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseCard(raw.Suit, raw.Rank)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseCard(suit, rank string) (Card, error) {
	var card Card
	found := false
	for s, name := range suitNames {
		if name == suit {
			card.Suit = s
			found = true
			break
		}
	}
	if !found {
		return Card{}, fmt.Errorf("unknown suit %q", suit)
	}
	found = false
	for r, name := range rankNames {
		if name == rank {
			card.Rank = r
			found = true
			break
		}
	}
	if !found {
		return Card{}, fmt.Errorf("unknown rank %q", rank)
	}
	return card, nil
}

// threeOfSpades is the conventional opening card.
var threeOfSpades = Card{Suit: Spades, Rank: RankThree}

// NewDeck returns the full 52-card deck in suit-then-rank order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for s := Spades; s <= Hearts; s++ {
		for r := RankThree; r <= RankTwo; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ShuffleDeck returns a Fisher-Yates shuffled copy of deck. Callers seed rng
// from a crypto source in production and from a fixed value in tests.
func ShuffleDeck(deck []Card, rng *mrand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Deal splits the deck round-robin into equal hands: 13 cards each for four
// players, 17 for three, 26 for two. With three players one card stays
// undealt.
func Deal(deck []Card, players []uuid.UUID) (map[uuid.UUID][]Card, error) {
	n := len(players)
	if n < 2 || n > 4 {
		return nil, appErr.ErrInvalidPlayerCount
	}
	perPlayer := len(deck) / n
	hands := make(map[uuid.UUID][]Card, n)
	for i, p := range players {
		hand := make([]Card, 0, perPlayer)
		for c := 0; c < perPlayer; c++ {
			hand = append(hand, deck[c*n+i])
		}
		SortCards(hand)
		hands[p] = hand
	}
	return hands, nil
}

// SortCards orders cards ascending by rank, suits grouped within a rank.
func SortCards(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Rank != cards[j].Rank {
			return cards[i].Rank < cards[j].Rank
		}
		return cards[i].Suit < cards[j].Suit
	})
}

// removeCards returns hand minus the given cards. It assumes containsAll has
// already been checked.
func removeCards(hand []Card, toRemove []Card) []Card {
	removeCounts := make(map[Card]int, len(toRemove))
	for _, card := range toRemove {
		removeCounts[card]++
	}
	updated := make([]Card, 0, len(hand))
	for _, card := range hand {
		if count, ok := removeCounts[card]; ok && count > 0 {
			removeCounts[card] = count - 1
			continue
		}
		updated = append(updated, card)
	}
	return updated
}

// containsAll reports whether every requested card (with multiplicity,
// though a real deck has no duplicates) is present in hand.
func containsAll(hand []Card, cards []Card) bool {
	if len(cards) == 0 {
		return false
	}
	held := make(map[Card]int, len(hand))
	for _, c := range hand {
		held[c]++
	}
	for _, c := range cards {
		if held[c] == 0 {
			return false
		}
		held[c]--
	}
	return true
}
