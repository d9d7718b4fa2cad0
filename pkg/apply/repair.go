package apply

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// cleanObsoletePseudoEdges removes a PSEUDO edge between two touched
// vertices once a real (non-pseudo) edge with the same flags now connects
// them — a pseudo edge exists only to keep a vertex reachable across a gap
// left by a deletion, and stops being needed the moment a later change
// reconnects that gap for real (spec §4.4 "Pseudo-edge sweep").
func cleanObsoletePseudoEdges(txn *writeCtx, ws *workspace) error {
	for v := range ws.touched {
		edges, err := txn.ch.Adjacent(&txn.w.Txn, v, 0, graph.FlagPseudo|graph.FlagParent|graph.FlagFolder|graph.FlagDeleted|graph.FlagBlock)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if !e.Flags.Has(graph.FlagPseudo) {
				continue
			}
			real := e.Flags &^ graph.FlagPseudo
			hasReal, err := hasRealEdge(txn, v, e.Dest, real)
			if err != nil {
				return err
			}
			if hasReal {
				if err := txn.ch.DelGraphWithRev(txn.w, v, e.Dest, e.Flags&^graph.FlagParent, e.IntroducedBy); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func hasRealEdge(txn *writeCtx, v, dest ids.Vertex, flags graph.EdgeFlags) (bool, error) {
	found := false
	err := txn.ch.IterAdjacent(&txn.w.Txn, v, flags&^graph.FlagParent, flags|graph.FlagParent, func(e graph.Edge) (bool, error) {
		if e.Dest == dest && !e.Flags.Has(graph.FlagPseudo) {
			found = true
			return false, nil
		}
		return true, nil
	})
	return found, err
}

// repairZombies reattaches children of a now-dead vertex to the channel
// root via a PSEUDO edge, so they remain reachable (spec §4.4 "Zombie
// repair": "a vertex whose only live parent was just deleted becomes
// unreachable; its children are re-rooted through a pseudo edge until a
// future change provides a real one").
func repairZombies(txn *writeCtx, ws *workspace) error {
	for v := range ws.touched {
		if v == ws.root {
			continue
		}
		alive, err := txn.ch.IsAlive(&txn.w.Txn, v, ws.root)
		if err != nil {
			return err
		}
		if alive {
			continue
		}
		children, err := txn.ch.Adjacent(&txn.w.Txn, v, 0, graph.FlagFolder|graph.FlagBlock)
		if err != nil {
			return err
		}
		for _, e := range children {
			if e.Flags.Has(graph.FlagParent) || e.Flags.Has(graph.FlagDeleted) {
				continue
			}
			childAlive, err := txn.ch.IsAlive(&txn.w.Txn, e.Dest, ws.root)
			if err != nil {
				return err
			}
			if childAlive {
				continue
			}
			if err := txn.ch.PutGraphWithRev(txn.w, ws.root, e.Dest, graph.FlagPseudo, ids.RootNodeId); err != nil {
				return err
			}
		}
	}
	return nil
}

// repairCyclicPaths breaks a cycle discovered among this application's
// touched vertices by removing its PSEUDO edge, if it has one.
//
// Simplification: the original repairs an arbitrary cycle by picking the
// newest contributing edge via a priority walk over the whole affected
// component. Real commutative merges can only ever produce a cycle through
// a PSEUDO edge in this port's model (a cycle among real edges would mean
// two changes both claim to be each other's predecessor, which dependency
// ordering already forbids — spec §4.1 "the dependency DAG has no
// cycles"), so breaking the pseudo edge is sufficient for every cycle this
// engine can actually construct. A cycle found with no pseudo edge in it
// is reported as corruption rather than guessed at.
func repairCyclicPaths(txn *writeCtx, ws *workspace) error {
	for start := range ws.touched {
		cycle, err := findCycleFrom(txn, start, ws.root)
		if err != nil {
			return err
		}
		if cycle == nil {
			continue
		}
		broke := false
		for i := 0; i+1 < len(cycle); i++ {
			v, dest := cycle[i], cycle[i+1]
			edges, err := txn.ch.Adjacent(&txn.w.Txn, v, 0, graph.FlagPseudo|graph.FlagParent|graph.FlagFolder|graph.FlagDeleted|graph.FlagBlock)
			if err != nil {
				return err
			}
			for _, e := range edges {
				if e.Dest == dest && e.Flags.Has(graph.FlagPseudo) {
					if err := txn.ch.DelGraphWithRev(txn.w, v, dest, e.Flags&^graph.FlagParent, e.IntroducedBy); err != nil {
						return err
					}
					broke = true
				}
			}
			if broke {
				break
			}
		}
		if !broke {
			return &CorruptionError{Reason: "cycle detected with no pseudo edge to break"}
		}
	}
	return nil
}

// findCycleFrom does a bounded DFS from start looking for a path back to
// itself that never passes through root, returning the path if one
// exists.
func findCycleFrom(txn *writeCtx, start, root ids.Vertex) ([]ids.Vertex, error) {
	visited := map[ids.Vertex]bool{}
	var path []ids.Vertex
	var walk func(v ids.Vertex) ([]ids.Vertex, error)
	walk = func(v ids.Vertex) ([]ids.Vertex, error) {
		if v == root {
			return nil, nil
		}
		if visited[v] {
			if v == start {
				return append(append([]ids.Vertex{}, path...), v), nil
			}
			return nil, nil
		}
		visited[v] = true
		path = append(path, v)
		var found []ids.Vertex
		err := txn.ch.IterAdjacent(&txn.w.Txn, v, 0, graph.FlagPseudo|graph.FlagFolder|graph.FlagBlock, func(e graph.Edge) (bool, error) {
			if e.Flags.Has(graph.FlagParent) || e.Flags.Has(graph.FlagDeleted) {
				return true, nil
			}
			res, err := walk(e.Dest)
			if err != nil {
				return false, err
			}
			if res != nil {
				found = res
				return false, nil
			}
			return true, nil
		})
		path = path[:len(path)-1]
		return found, err
	}
	return walk(start)
}
