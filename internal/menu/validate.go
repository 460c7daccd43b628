package menu

import (
	"errors"
	"fmt"
)

// Validate checks the structural rules of a forest: unique ids, pid
// back-references that match the enclosing node, no children under
// buttons and no node reachable twice. Every violation is reported; the
// result is nil for a valid forest.
//
// Composition does not call Validate. Loaders run it once, when a store
// is built with WithValidation.
func Validate(forest []*Node) error {
	v := validator{
		ids:     make(map[int64]struct{}),
		visited: make(map[*Node]struct{}),
	}
	v.check(forest, nil)
	return errors.Join(v.errs...)
}

type validator struct {
	ids     map[int64]struct{}
	visited map[*Node]struct{}
	errs    []error
}

func (v *validator) check(nodes []*Node, parent *Node) {
	for _, n := range nodes {
		if n == nil {
			v.errs = append(v.errs, ErrNilNode)
			continue
		}
		if _, seen := v.visited[n]; seen {
			v.errs = append(v.errs, fmt.Errorf("node %d: %w", n.id, ErrSharedNode))
			continue
		}
		v.visited[n] = struct{}{}

		if _, dup := v.ids[n.id]; dup {
			v.errs = append(v.errs, fmt.Errorf("node %d: %w", n.id, ErrDuplicateID))
		}
		v.ids[n.id] = struct{}{}

		if pid, ok := n.ParentID(); ok {
			if parent == nil || parent.id != pid {
				v.errs = append(v.errs, fmt.Errorf("node %d (pid %d): %w", n.id, pid, ErrParentMismatch))
			}
		}

		if !n.kind.AllowsChildren() && len(n.children) > 0 {
			v.errs = append(v.errs, fmt.Errorf("node %d: %w", n.id, ErrButtonChildren))
		}

		v.check(n.children, n)
	}
}
