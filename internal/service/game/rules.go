package game

import "sort"

// PlayType is the closed set of legal card combinations. Keeping it a closed
// enum means the comparator can switch exhaustively.
type PlayType int

const (
	PlayInvalid PlayType = iota
	PlaySingle
	PlayPair
	PlayTriple
	PlayStraight
	PlayConsecutivePairs
	PlayFourOfKind
)

var playTypeNames = map[PlayType]string{
	PlayInvalid:          "INVALID",
	PlaySingle:           "SINGLE",
	PlayPair:             "PAIR",
	PlayTriple:           "TRIPLE",
	PlayStraight:         "STRAIGHT",
	PlayConsecutivePairs: "CONSECUTIVE_PAIRS",
	PlayFourOfKind:       "FOUR_OF_KIND",
}

func (t PlayType) String() string { return playTypeNames[t] }

// Play is a classified combination. PrimaryRank is always derived from Cards,
// never trusted from the wire.
type Play struct {
	Type        PlayType `json:"type"`
	Cards       []Card   `json:"cards"`
	PrimaryRank Rank     `json:"primaryRank"`
}

// IsBomb reports whether the play can chop a Two out of rank order: a four of
// a kind, or three or more consecutive pairs.
func (p Play) IsBomb() bool {
	switch p.Type {
	case PlayFourOfKind:
		return true
	case PlayConsecutivePairs:
		return len(p.Cards) >= 6
	default:
		return false
	}
}

func (p Play) pairCount() int { return len(p.Cards) / 2 }

// Classify determines the play type and defining rank for a card selection.
// Unrecognizable selections come back as PlayInvalid.
func Classify(cards []Card) Play {
	if len(cards) == 0 {
		return Play{Type: PlayInvalid}
	}

	sorted := make([]Card, len(cards))
	copy(sorted, cards)
	SortCards(sorted)

	if len(sorted) == 1 {
		return Play{Type: PlaySingle, Cards: sorted, PrimaryRank: sorted[0].Rank}
	}

	if allSameRank(sorted) {
		val := sorted[0].Rank
		switch len(sorted) {
		case 2:
			return Play{Type: PlayPair, Cards: sorted, PrimaryRank: val}
		case 3:
			return Play{Type: PlayTriple, Cards: sorted, PrimaryRank: val}
		case 4:
			return Play{Type: PlayFourOfKind, Cards: sorted, PrimaryRank: val}
		}
		return Play{Type: PlayInvalid}
	}

	if isStraight(sorted) {
		return Play{Type: PlayStraight, Cards: sorted, PrimaryRank: sorted[len(sorted)-1].Rank}
	}

	if isConsecutivePairs(sorted) {
		return Play{Type: PlayConsecutivePairs, Cards: sorted, PrimaryRank: sorted[len(sorted)-1].Rank}
	}

	return Play{Type: PlayInvalid}
}

// Beats reports whether challenger may be played over pile. A nil pile means
// the challenger leads and any valid play stands.
//
// Bomb ordering is fixed as: four of a kind beats three consecutive pairs;
// four or more consecutive pairs beat a four of a kind; equal shapes compare
// by rank. Suit never breaks ties.
func Beats(challenger Play, pile *Play) bool {
	if challenger.Type == PlayInvalid {
		return false
	}
	if pile == nil {
		return true
	}

	// Matching shape: straight rank comparison.
	if challenger.Type == pile.Type && len(challenger.Cards) == len(pile.Cards) {
		return challenger.PrimaryRank > pile.PrimaryRank
	}

	if !challenger.IsBomb() {
		return false
	}

	// Bomb overrides against Two-based piles.
	pileSingleTwo := pile.Type == PlaySingle && pile.PrimaryRank == RankTwo
	pilePairTwo := pile.Type == PlayPair && pile.PrimaryRank == RankTwo
	if pileSingleTwo || pilePairTwo {
		return true
	}

	// Bomb against bomb, different shapes.
	if !pile.IsBomb() {
		return false
	}
	switch {
	case challenger.Type == PlayFourOfKind && pile.Type == PlayConsecutivePairs:
		return pile.pairCount() == 3
	case challenger.Type == PlayConsecutivePairs && pile.Type == PlayFourOfKind:
		return challenger.pairCount() >= 4
	case challenger.Type == PlayConsecutivePairs && pile.Type == PlayConsecutivePairs:
		return challenger.pairCount() > pile.pairCount()
	}
	return false
}

// IsInstantWin checks a dealt 13-card hand for an immediate win: six pairs,
// four Twos, or a dragon straight holding every rank from Three to Ace.
func IsInstantWin(hand []Card) bool {
	if len(hand) != 13 {
		return false
	}
	counts := make(map[Rank]int, len(hand))
	for _, c := range hand {
		counts[c.Rank]++
	}

	pairs := 0
	for _, n := range counts {
		if n >= 2 {
			pairs++
		}
	}
	if pairs >= 6 {
		return true
	}

	if counts[RankTwo] == 4 {
		return true
	}

	for r := RankThree; r <= RankAce; r++ {
		if counts[r] < 1 {
			return false
		}
	}
	return true
}

func allSameRank(cards []Card) bool {
	if len(cards) == 0 {
		return false
	}
	r := cards[0].Rank
	for _, c := range cards {
		if c.Rank != r {
			return false
		}
	}
	return true
}

func isStraight(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	ranks := make([]int, len(cards))
	for i, c := range cards {
		if c.Rank == RankTwo { // a Two never joins a sequence
			return false
		}
		ranks[i] = int(c.Rank)
	}
	sort.Ints(ranks)
	for i := 1; i < len(ranks); i++ {
		if ranks[i] != ranks[i-1]+1 {
			return false
		}
	}
	return true
}

func isConsecutivePairs(cards []Card) bool {
	if len(cards) < 6 || len(cards)%2 != 0 {
		return false
	}
	ranks := make([]int, len(cards))
	for i, c := range cards {
		if c.Rank == RankTwo {
			return false
		}
		ranks[i] = int(c.Rank)
	}
	sort.Ints(ranks)

	pairRanks := make([]int, 0, len(ranks)/2)
	for i := 0; i < len(ranks); i += 2 {
		if ranks[i] != ranks[i+1] {
			return false
		}
		pairRanks = append(pairRanks, ranks[i])
	}
	for i := 1; i < len(pairRanks); i++ {
		if pairRanks[i] != pairRanks[i-1]+1 {
			return false
		}
	}
	return true
}
