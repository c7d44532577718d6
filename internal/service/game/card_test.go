package game

import (
	"encoding/json"
	mrand "math/rand"
	"testing"

	appErr "tet-service/pkg/errors"

	"github.com/google/uuid"
)

func card(r Rank, s Suit) Card {
	return Card{Suit: s, Rank: r}
}

func TestNewDeckHas52UniqueCards(t *testing.T) {
	deck := NewDeck()
	if len(deck) != 52 {
		t.Fatalf("expected 52 cards, got %d", len(deck))
	}
	seen := make(map[Card]struct{}, len(deck))
	for _, c := range deck {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate card %s in deck", c)
		}
		seen[c] = struct{}{}
	}
}

func TestShuffleDeckIsDeterministicPerSeed(t *testing.T) {
	deck := NewDeck()

	a := ShuffleDeck(deck, mrand.New(mrand.NewSource(42)))
	b := ShuffleDeck(deck, mrand.New(mrand.NewSource(42)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orders at index %d", i)
		}
	}

	// The input deck must stay untouched.
	fresh := NewDeck()
	for i := range deck {
		if deck[i] != fresh[i] {
			t.Fatalf("shuffle mutated the input deck at index %d", i)
		}
	}
}

func TestDealHandSizes(t *testing.T) {
	cases := []struct {
		players int
		size    int
	}{
		{2, 26},
		{3, 17},
		{4, 13},
	}
	for _, tc := range cases {
		players := make([]uuid.UUID, tc.players)
		for i := range players {
			players[i] = uuid.New()
		}
		hands, err := Deal(NewDeck(), players)
		if err != nil {
			t.Fatalf("Deal(%d players): %v", tc.players, err)
		}
		for _, p := range players {
			if len(hands[p]) != tc.size {
				t.Fatalf("%d players: expected %d cards per hand, got %d", tc.players, tc.size, len(hands[p]))
			}
		}

		seen := make(map[Card]struct{})
		for _, p := range players {
			for _, c := range hands[p] {
				if _, dup := seen[c]; dup {
					t.Fatalf("%d players: card %s dealt twice", tc.players, c)
				}
				seen[c] = struct{}{}
			}
		}
	}
}

func TestDealRejectsBadPlayerCount(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		players := make([]uuid.UUID, n)
		for i := range players {
			players[i] = uuid.New()
		}
		if _, err := Deal(NewDeck(), players); err != appErr.ErrInvalidPlayerCount {
			t.Fatalf("Deal(%d players): expected ErrInvalidPlayerCount, got %v", n, err)
		}
	}
}

func TestRemoveCards(t *testing.T) {
	hand := []Card{
		card(RankThree, Spades),
		card(RankThree, Hearts),
		card(RankFive, Clubs),
	}
	updated := removeCards(hand, []Card{card(RankThree, Hearts)})
	if len(updated) != 2 {
		t.Fatalf("expected 2 cards left, got %d", len(updated))
	}
	for _, c := range updated {
		if c == card(RankThree, Hearts) {
			t.Fatalf("removed card still present")
		}
	}
}

func TestContainsAll(t *testing.T) {
	hand := []Card{card(RankThree, Spades), card(RankFour, Clubs)}
	if !containsAll(hand, []Card{card(RankFour, Clubs)}) {
		t.Fatalf("expected held card to be found")
	}
	if containsAll(hand, []Card{card(RankFour, Hearts)}) {
		t.Fatalf("card not in hand reported as held")
	}
	if containsAll(hand, nil) {
		t.Fatalf("empty selection must not count as held")
	}
}

func TestCardJSON(t *testing.T) {
	data, err := json.Marshal(card(RankTwo, Hearts))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"suit":"HEARTS","rank":"TWO"}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var c Card
	if err := json.Unmarshal([]byte(`{"suit":"SPADES","rank":"THREE"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c != threeOfSpades {
		t.Fatalf("expected three of spades, got %s", c)
	}

	if err := json.Unmarshal([]byte(`{"suit":"STARS","rank":"THREE"}`), &c); err == nil {
		t.Fatalf("expected error for unknown suit")
	}
}
