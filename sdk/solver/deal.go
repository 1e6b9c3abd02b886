package solver

import (
	"github.com/bizarc/lhecfr/poker"
	"github.com/bizarc/lhecfr/sdk/tree"
)

// Deal fixes the private and public cards for one pair of traversals. Card
// tokens are canonicalised once up front; traversal only ever touches the
// tokens and the showdown comparison.
type Deal struct {
	Holes [2][2]poker.Card
	Board [5]poker.Card

	holeTok  [2]string
	boardTok [4]string // indexed by street, "" preflop
	cmp      int       // sign of rank0 - rank1 at showdown
}

// NewDeal canonicalises a fixed deal.
func NewDeal(holes [2][2]poker.Card, board [5]poker.Card) *Deal {
	d := &Deal{Holes: holes, Board: board}
	d.holeTok[0] = poker.CanonicalHole(holes[0][0], holes[0][1])
	d.holeTok[1] = poker.CanonicalHole(holes[1][0], holes[1][1])
	for s := tree.Flop; s <= tree.River; s++ {
		d.boardTok[s] = poker.CanonicalBoard(board[:s.BoardCards()])
	}

	rank := func(p int) poker.HandRank {
		h := poker.NewHand(holes[p][0], holes[p][1], board[0], board[1], board[2], board[3], board[4])
		return poker.Evaluate7(h)
	}
	r0, r1 := rank(0), rank(1)
	switch {
	case r0 > r1:
		d.cmp = 1
	case r0 < r1:
		d.cmp = -1
	}
	return d
}

// SampleDeal draws hole cards and a board from a shuffled deck.
func SampleDeal(deck *poker.Deck) *Deal {
	deck.Reset()
	var holes [2][2]poker.Card
	copy(holes[0][:], deck.Deal(2))
	copy(holes[1][:], deck.Deal(2))
	var board [5]poker.Card
	copy(board[:], deck.Deal(5))
	return NewDeal(holes, board)
}

// HoleToken returns the canonical hole token of a player.
func (d *Deal) HoleToken(player int8) string {
	return d.holeTok[player]
}

// BoardToken returns the canonical token of the board prefix visible on a
// street.
func (d *Deal) BoardToken(s tree.Street) string {
	return d.boardTok[s]
}

// ShowdownUtility resolves a showdown terminal for one player: win the
// opponent's invested chips, lose your own, or split for zero.
func (d *Deal) ShowdownUtility(n *tree.GameNode, player int8) float64 {
	win := d.cmp
	if player == 1 {
		win = -win
	}
	switch {
	case win > 0:
		return float64(n.Invested[1-player])
	case win < 0:
		return -float64(n.Invested[player])
	default:
		return 0
	}
}
