package tree

import (
	"errors"
	"fmt"
	"strings"
)

// NodeInfo is the fixed-width slice of a node that packs into one 64-bit
// word. Variable-size attributes (history, utilities) are interned and
// referenced by index.
type NodeInfo struct {
	Player      int8
	Street      Street
	TermKind    TerminalKind
	FacingBet   bool
	IsTerminal  bool
	NumChildren uint8
	HistoryIdx  uint32
	UtilsIdx    uint16
}

// Bit layout, low to high:
//   0-1   player (3 = no player)
//   2-3   street
//   4-6   terminal kind
//   7     facing bet
//   8     is terminal
//   9-11  num children
//   12-43 history index
//   44-59 utilities index
//   60-63 unused
const (
	playerShift   = 0
	streetShift   = 2
	termKindShift = 4
	facingShift   = 7
	terminalShift = 8
	childrenShift = 9
	historyShift  = 12
	utilsShift    = 44
)

// PackNodeInfo packs a NodeInfo into its 64-bit representation.
func PackNodeInfo(info NodeInfo) uint64 {
	player := uint64(3)
	if info.Player >= 0 {
		player = uint64(info.Player)
	}
	var w uint64
	w |= player << playerShift
	w |= uint64(info.Street) << streetShift
	w |= uint64(info.TermKind) << termKindShift
	if info.FacingBet {
		w |= 1 << facingShift
	}
	if info.IsTerminal {
		w |= 1 << terminalShift
	}
	w |= uint64(info.NumChildren) << childrenShift
	w |= uint64(info.HistoryIdx) << historyShift
	w |= uint64(info.UtilsIdx) << utilsShift
	return w
}

// UnpackNodeInfo is the exact inverse of PackNodeInfo.
func UnpackNodeInfo(w uint64) NodeInfo {
	info := NodeInfo{
		Street:      Street(w >> streetShift & 0x3),
		TermKind:    TerminalKind(w >> termKindShift & 0x7),
		FacingBet:   w>>facingShift&1 == 1,
		IsTerminal:  w>>terminalShift&1 == 1,
		NumChildren: uint8(w >> childrenShift & 0x7),
		HistoryIdx:  uint32(w >> historyShift & 0xFFFFFFFF),
		UtilsIdx:    uint16(w >> utilsShift & 0xFFFF),
	}
	player := w >> playerShift & 0x3
	if player == 3 {
		info.Player = NoPlayer
	} else {
		info.Player = int8(player)
	}
	return info
}

// CompactTree is the bit-packed projection of a GameTree. Betting histories
// and utility pairs are interned into shared tables; children live in one
// contiguous arena. Pot and invested chips ride in parallel arrays so the
// projection loses nothing a Decompress needs.
type CompactTree struct {
	Params GameParams
	Root   int32

	Packed       []uint64
	ChildOffsets []int32
	ChildArena   []int32
	Pots         []int32
	Invested     [][2]int32

	Histories []string
	Utilities [][2]float64
}

// NumNodes returns the node count of the compact form.
func (c *CompactTree) NumNodes() int {
	return len(c.Packed)
}

// Compress projects a GameTree into its compact form. Chance nodes (which
// only appear in hand-built fixture trees, never in the betting tree) are
// not representable and produce an error.
func Compress(t *GameTree) (*CompactTree, error) {
	c := &CompactTree{
		Params:       t.Params,
		Root:         t.Root,
		Packed:       make([]uint64, len(t.Nodes)),
		ChildOffsets: make([]int32, len(t.Nodes)+1),
		Pots:         make([]int32, len(t.Nodes)),
		Invested:     make([][2]int32, len(t.Nodes)),
	}

	historyIdx := make(map[string]uint32)
	utilsIdx := make(map[[2]float64]uint16)

	internHistory := func(h string) uint32 {
		if idx, ok := historyIdx[h]; ok {
			return idx
		}
		idx := uint32(len(c.Histories))
		c.Histories = append(c.Histories, h)
		historyIdx[h] = idx
		return idx
	}
	internUtils := func(u [2]float64) (uint16, error) {
		if idx, ok := utilsIdx[u]; ok {
			return idx, nil
		}
		if len(c.Utilities) >= 1<<16 {
			return 0, errors.New("utility table overflow")
		}
		idx := uint16(len(c.Utilities))
		c.Utilities = append(c.Utilities, u)
		utilsIdx[u] = idx
		return idx, nil
	}

	for i, n := range t.Nodes {
		if n.Kind == NodeChance {
			return nil, fmt.Errorf("node %d: chance nodes have no compact form", n.ID)
		}
		hIdx := internHistory(n.History)
		uIdx, err := internUtils(n.Utils)
		if err != nil {
			return nil, err
		}
		c.Packed[i] = PackNodeInfo(NodeInfo{
			Player:      n.Player,
			Street:      n.Street,
			TermKind:    n.TermKind,
			FacingBet:   n.FacingBet,
			IsTerminal:  n.Kind == NodeTerminal,
			NumChildren: uint8(len(n.Children)),
			HistoryIdx:  hIdx,
			UtilsIdx:    uIdx,
		})
		c.ChildOffsets[i] = int32(len(c.ChildArena))
		c.ChildArena = append(c.ChildArena, n.Children...)
		c.Pots[i] = int32(n.Pot)
		c.Invested[i] = [2]int32{int32(n.Invested[0]), int32(n.Invested[1])}
	}
	c.ChildOffsets[len(t.Nodes)] = int32(len(c.ChildArena))
	return c, nil
}

// Decompress rebuilds the full GameTree from its compact projection.
// Compress followed by Decompress preserves every structural invariant:
// node counts, root properties, terminal kinds and utilities, parent/child
// consistency and infoset assignment.
func Decompress(c *CompactTree) (*GameTree, error) {
	t := &GameTree{
		Params:   c.Params,
		Root:     c.Root,
		Nodes:    make([]*GameNode, len(c.Packed)),
		InfoSets: make(map[string][]int32),
	}

	for i, w := range c.Packed {
		info := UnpackNodeInfo(w)
		if int(info.HistoryIdx) >= len(c.Histories) {
			return nil, fmt.Errorf("node %d: history index %d out of range", i, info.HistoryIdx)
		}
		if int(info.UtilsIdx) >= len(c.Utilities) {
			return nil, fmt.Errorf("node %d: utilities index %d out of range", i, info.UtilsIdx)
		}
		history := c.Histories[info.HistoryIdx]

		n := &GameNode{
			ID:        int32(i),
			Player:    info.Player,
			Street:    info.Street,
			Pot:       int(c.Pots[i]),
			FacingBet: info.FacingBet,
			History:   history,
			Parent:    NoNode,
			TermKind:  info.TermKind,
			Utils:     c.Utilities[info.UtilsIdx],
			Invested:  [2]int{int(c.Invested[i][0]), int(c.Invested[i][1])},
			Raises:    countStreetRaises(history),
		}
		if info.IsTerminal {
			n.Kind = NodeTerminal
			t.TerminalIDs = append(t.TerminalIDs, n.ID)
		} else {
			n.Kind = NodePlayer
			n.InfoSetID = infoSetID(n.Player, n.Street, history)
			t.InfoSets[n.InfoSetID] = append(t.InfoSets[n.InfoSetID], n.ID)
			t.PlayerIDs = append(t.PlayerIDs, n.ID)
			n.ActionChild = make(map[Action]int32, info.NumChildren)
		}

		start, end := c.ChildOffsets[i], c.ChildOffsets[i+1]
		if int(info.NumChildren) != int(end-start) {
			return nil, fmt.Errorf("node %d: packed child count %d disagrees with arena %d", i, info.NumChildren, end-start)
		}
		n.Children = append([]int32(nil), c.ChildArena[start:end]...)
		t.Nodes[i] = n
	}

	// Second pass: parents and the action labelling of each edge, both
	// recoverable from the child's history.
	for _, n := range t.Nodes {
		for _, cid := range n.Children {
			if cid < 0 || int(cid) >= len(t.Nodes) {
				return nil, fmt.Errorf("node %d: child %d out of range", n.ID, cid)
			}
			child := t.Nodes[cid]
			child.Parent = n.ID
			if n.Kind == NodePlayer {
				n.ActionChild[edgeAction(child.History)] = cid
			}
		}
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("decompressed tree failed validation: %w", err)
	}
	return t, nil
}

// countStreetRaises counts raises in the current (last) street segment.
func countStreetRaises(history string) uint8 {
	seg := history
	if i := strings.LastIndexByte(history, '/'); i >= 0 {
		seg = history[i+1:]
	}
	var n uint8
	for i := 0; i < len(seg); i++ {
		if seg[i] == byte(ActionRaise) {
			n++
		}
	}
	return n
}

// edgeAction recovers the action that led to a node from its history; a
// trailing street separator belongs to the following street, so the action
// precedes it.
func edgeAction(history string) Action {
	h := strings.TrimSuffix(history, "/")
	if h == "" {
		return ActionCall
	}
	return Action(h[len(h)-1])
}
