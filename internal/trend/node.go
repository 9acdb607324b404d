// Package trend implements the trend-detection decision procedure: a small
// finite-state machine that sequences hypothesis tests for one period and
// branches on their outcomes.
package trend

import (
	"sort"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// Node identifies one step of the decision procedure
type Node int

const (
	NodeWhite Node = iota + 1
	NodeMWMK
	NodeSensVariance
	NodeRunsVariance
	NodeMK
	NodeSpearman
	NodeBBMK
	NodePP
	NodeKPSS
	NodeSensMean
	NodeRunsMean
)

// Start is the entry node of every run
const Start = NodeWhite

var itemNames = map[Node]string{
	NodeWhite:        "white",
	NodeMWMK:         "mwmk",
	NodeSensVariance: "sens_variance",
	NodeRunsVariance: "runs_variance",
	NodeMK:           "mk",
	NodeSpearman:     "spearman",
	NodeBBMK:         "bbmk",
	NodePP:           "pp",
	NodeKPSS:         "kpss",
	NodeSensMean:     "sens_mean",
	NodeRunsMean:     "runs_mean",
}

// Item returns the key under which the node's result is stored
func (n Node) Item() string {
	return itemNames[n]
}

func (n Node) String() string {
	if name, ok := itemNames[n]; ok {
		return name
	}
	return "unknown"
}

// Items maps item names to the results of the nodes visited in one run
type Items map[string]*ffa.TestResult

// Get returns the result stored for node n, or nil if n was not visited
func (items Items) Get(n Node) *ffa.TestResult {
	return items[n.Item()]
}

// Path lists the visited nodes in visiting order. Transitions only ever move
// to a higher-numbered node, so visiting order is numeric order.
func (items Items) Path() []Node {
	var path []Node
	for n, name := range itemNames {
		if _, ok := items[name]; ok {
			path = append(path, n)
		}
	}
	sort.Slice(path, func(i, j int) bool { return path[i] < path[j] })
	return path
}

func rejected(items Items, n Node) bool {
	r := items.Get(n)
	return r != nil && r.Reject
}

// Next is the transition function. Given the node just completed and the
// results so far, it returns the next node, or false when the run is over.
func Next(n Node, items Items) (Node, bool) {
	switch n {
	case NodeWhite:
		return NodeMWMK, true
	case NodeMWMK:
		if rejected(items, NodeWhite) || rejected(items, NodeMWMK) {
			return NodeSensVariance, true
		}
		return NodeMK, true
	case NodeSensVariance:
		return NodeRunsVariance, true
	case NodeRunsVariance:
		return NodeMK, true
	case NodeMK:
		if rejected(items, NodeMK) {
			return NodeSpearman, true
		}
		return 0, false
	case NodeSpearman:
		if rejected(items, NodeSpearman) {
			return NodeBBMK, true
		}
		return NodeSensMean, true
	case NodeBBMK:
		if rejected(items, NodeBBMK) {
			return NodePP, true
		}
		return 0, false
	case NodePP:
		return NodeKPSS, true
	case NodeKPSS:
		return NodeSensMean, true
	case NodeSensMean:
		return NodeRunsMean, true
	default:
		return 0, false
	}
}
