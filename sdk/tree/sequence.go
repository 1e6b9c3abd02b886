package tree

// BetSequence is one complete legal betting line for a single street.
type BetSequence struct {
	Actions  []Action
	FinalPot int
	Terminal bool
	Kind     TerminalKind
}

// streetState tracks the betting round in progress. owed is the amount the
// player to act must match; the preflop blind imbalance seeds it so the small
// blind opens with fold/call/raise while the facing-bet flag (an outstanding
// raise) stays false.
type streetState struct {
	owed   int
	raises uint8
	acted  int
}

func openingState(street Street, facingBet bool, p GameParams) streetState {
	st := streetState{}
	if facingBet {
		st.owed = p.BetSize(street)
		st.raises = 1
	} else if street == Preflop {
		st.owed = p.BigBlind - p.SmallBlind
	}
	return st
}

// legalActions returns the actions available in the current state: facing
// chips to call it is fold/call plus raise under the cap, otherwise
// check/raise.
func (s streetState) legalActions(p GameParams) []Action {
	if s.owed > 0 {
		if int(s.raises) < p.MaxRaisesPerStreet {
			return []Action{ActionFold, ActionCall, ActionRaise}
		}
		return []Action{ActionFold, ActionCall}
	}
	return []Action{ActionCall, ActionRaise}
}

// apply advances the street state by one action, returning the new state, the
// chips the actor adds, and whether the street closed (kind tells how).
// A call adds the owed amount; a raise matches and adds one bet on top, so it
// costs one bet when opening and two when facing a bet.
func (s streetState) apply(a Action, street Street, p GameParams) (next streetState, chips int, closed bool, kind TerminalKind) {
	bet := p.BetSize(street)
	switch a {
	case ActionFold:
		return s, 0, true, TerminalFold
	case ActionCall:
		chips = s.owed
		next = streetState{owed: 0, raises: s.raises, acted: s.acted + 1}
		// A call closes the street when it matches a raise, or when it is
		// the second check of an open round. The preflop limp (a call of
		// the blind with no raise outstanding) leaves the big blind an
		// option, so the round stays open.
		if s.raises > 0 || (s.owed == 0 && s.acted >= 1) {
			return next, chips, true, TerminalShowdown
		}
		return next, chips, false, TerminalNone
	case ActionRaise:
		chips = s.owed + bet
		next = streetState{owed: bet, raises: s.raises + 1, acted: s.acted + 1}
		return next, chips, false, TerminalNone
	default:
		panic("unknown action")
	}
}

// EnumerateSequences produces every terminal betting line for one street
// starting from the given pot and facing flag.
func EnumerateSequences(street Street, pot int, facingBet bool, p GameParams) []BetSequence {
	var out []BetSequence
	var walk func(st streetState, pot int, prefix []Action)
	walk = func(st streetState, pot int, prefix []Action) {
		for _, a := range st.legalActions(p) {
			next, chips, closed, kind := st.apply(a, street, p)
			line := append(append([]Action(nil), prefix...), a)
			if closed {
				out = append(out, BetSequence{
					Actions:  line,
					FinalPot: pot + chips,
					Terminal: true,
					Kind:     kind,
				})
				continue
			}
			walk(next, pot+chips, line)
		}
	}
	walk(openingState(street, facingBet, p), pot, nil)
	return out
}
