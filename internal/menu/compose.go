package menu

import (
	"cmp"
	"slices"
)

// AccessCodes is the set of permission tokens held by the identity a forest
// is composed for. A nil set disables auth-code gating.
type AccessCodes map[string]struct{}

// NewAccessCodes builds a set from a list of codes
func NewAccessCodes(codes ...string) AccessCodes {
	set := make(AccessCodes, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Has reports whether code is held
func (a AccessCodes) Has(code string) bool {
	_, ok := a[code]
	return ok
}

func (a AccessCodes) allows(authCode string) bool {
	if a == nil || authCode == "" {
		return true
	}
	return a.Has(authCode)
}

// Composer produces the forest visible to a role
type Composer struct {
	store *Store
}

// NewComposer creates a composer reading from store
func NewComposer(store *Store) *Composer {
	return &Composer{store: store}
}

// Compose returns base forest + overlay(role) with disabled subtrees
// removed and siblings ordered. The result shares nothing with the store.
func (c *Composer) Compose(role string) ([]*Node, error) {
	return c.compose([]string{role}, nil)
}

// ComposeWithCodes is Compose with auth-code gating: a node whose auth code
// is not in codes is dropped together with its subtree.
func (c *Composer) ComposeWithCodes(role string, codes AccessCodes) ([]*Node, error) {
	return c.compose([]string{role}, codes)
}

// ComposeRoles appends the overlay of every listed role after the base
// forest, in the given order. Repeated roles contribute once.
func (c *Composer) ComposeRoles(roles []string, codes AccessCodes) ([]*Node, error) {
	return c.compose(roles, codes)
}

func (c *Composer) compose(roles []string, codes AccessCodes) ([]*Node, error) {
	if c.store == nil {
		return nil, ErrNilStore
	}

	base, err := c.store.BaseForest()
	if err != nil {
		return nil, err
	}

	merged := base
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		merged = append(merged, c.store.Overlay(role)...)
	}

	return filterForest(merged, codes), nil
}

// filterForest drops disabled or unauthorized nodes with their whole
// subtree and rebuilds survivors with filtered, ordered children.
func filterForest(nodes []*Node, codes AccessCodes) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || !n.Enabled() || !codes.allows(n.authCode) {
			continue
		}
		var children []*Node
		if len(n.children) > 0 {
			children = filterForest(n.children, codes)
		}
		out = append(out, n.withChildren(children))
	}
	SortSiblings(out)
	return out
}

// SortSiblings orders nodes by their order hint, ascending. Nodes without
// a hint sort after every hinted node. The sort is stable, so equal hints
// and hint-less nodes keep their input order.
func SortSiblings(nodes []*Node) {
	slices.SortStableFunc(nodes, compareOrder)
}

func compareOrder(a, b *Node) int {
	ao, aok := a.meta.OrderHint()
	bo, bok := b.meta.OrderHint()
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	default:
		return cmp.Compare(ao, bo)
	}
}
