package menu

// FlattenIDs lists every node id in depth-first pre-order. Duplicates are
// kept: they mean the forest broke the uniqueness rule and callers should
// see that.
func FlattenIDs(forest []*Node) []int64 {
	ids := make([]int64, 0, len(forest))
	Walk(forest, func(n *Node, _ int) bool {
		ids = append(ids, n.id)
		return true
	})
	return ids
}

// IDSet returns the ids of a forest as a membership set
func IDSet(forest []*Node) map[int64]struct{} {
	set := make(map[int64]struct{})
	Walk(forest, func(n *Node, _ int) bool {
		set[n.id] = struct{}{}
		return true
	})
	return set
}

// CollectAuthCodes lists the non-empty auth codes of a forest in pre-order
func CollectAuthCodes(forest []*Node) []string {
	var codes []string
	Walk(forest, func(n *Node, _ int) bool {
		if n.authCode != "" {
			codes = append(codes, n.authCode)
		}
		return true
	})
	return codes
}

// Find returns the first node with the given id in pre-order
func Find(forest []*Node, id int64) (*Node, bool) {
	var found *Node
	Walk(forest, func(n *Node, _ int) bool {
		if n.id == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Count returns the number of nodes in a forest
func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Walk visits nodes depth-first in pre-order, passing the depth of each
// node (roots are 0). Returning false from fn stops the walk.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	walk(forest, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(*Node, int) bool) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if !fn(n, depth) {
			return false
		}
		if !walk(n.children, depth+1, fn) {
			return false
		}
	}
	return true
}
