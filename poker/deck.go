package poker

import rand "math/rand/v2"

// Deck is a standard 52-card deck dealt front to back.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a shuffled deck using the provided RNG. The RNG must not be
// nil; deterministic solves depend on every shuffle being seeded explicitly.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	i := 0
	for suit := range uint8(NumSuits) {
		for rank := range uint8(NumRanks) {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}
	d.Shuffle()
	return d
}

// Shuffle rewinds the deck and applies a Fisher-Yates shuffle.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck, or nil if fewer remain.
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := d.cards[d.next : d.next+n]
	d.next += n
	return cards
}

// DealOne deals a single card, or 0 when the deck is exhausted.
func (d *Deck) DealOne() Card {
	if d.next >= len(d.cards) {
		return 0
	}
	card := d.cards[d.next]
	d.next++
	return card
}

// Reset reshuffles the full deck.
func (d *Deck) Reset() {
	d.Shuffle()
}

// CardsRemaining returns the number of undealt cards.
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}
