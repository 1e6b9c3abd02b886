package solver

import (
	"fmt"

	"github.com/bizarc/lhecfr/sdk/tree"
)

// TreeIndex precomputes node-to-infoset lookups by walking the tree once,
// keeping the per-node resolution during traversal at a slice access.
type TreeIndex struct {
	nodeToInfoSet []string
	infoSetNodes  map[string][]int32
}

// NewTreeIndex builds the index for a tree.
func NewTreeIndex(t *tree.GameTree) (*TreeIndex, error) {
	idx := &TreeIndex{
		nodeToInfoSet: make([]string, len(t.Nodes)),
		infoSetNodes:  make(map[string][]int32, len(t.InfoSets)),
	}
	for _, id := range t.PlayerIDs {
		n := t.Node(id)
		if n == nil {
			return nil, fmt.Errorf("player id %d not in arena", id)
		}
		if n.InfoSetID == "" {
			return nil, fmt.Errorf("player node %d has no infoset id", id)
		}
		idx.nodeToInfoSet[id] = n.InfoSetID
		idx.infoSetNodes[n.InfoSetID] = append(idx.infoSetNodes[n.InfoSetID], id)
	}
	return idx, nil
}

// InfoSetOf returns the card-free infoset id of a node ("" for non-player
// nodes).
func (idx *TreeIndex) InfoSetOf(nodeID int32) string {
	if nodeID < 0 || int(nodeID) >= len(idx.nodeToInfoSet) {
		return ""
	}
	return idx.nodeToInfoSet[nodeID]
}

// NodesOf returns every node carrying the given infoset id.
func (idx *TreeIndex) NodesOf(infoSetID string) []int32 {
	return idx.infoSetNodes[infoSetID]
}

// NumInfoSets returns the count of distinct card-free infosets.
func (idx *TreeIndex) NumInfoSets() int {
	return len(idx.infoSetNodes)
}
