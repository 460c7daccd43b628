package menu

import (
	"fmt"
	"slices"
)

// Store holds the base forest shared by every role and the per-role
// overlays. It is assembled once and read-only afterwards; reloading the
// catalog means building a new Store.
type Store struct {
	base     []*Node
	overlays map[string][]*Node
}

// StoreOption configures NewStore
type StoreOption func(*storeOptions)

type storeOptions struct {
	validate bool
}

// WithValidation runs Validate over the base forest and over base+overlay
// for every role before the store is returned.
func WithValidation() StoreOption {
	return func(o *storeOptions) { o.validate = true }
}

// NewStore copies the given forests into a new store. An empty base forest
// is accepted here and reported by BaseForest, so a misconfigured catalog
// still loads far enough to be inspected.
func NewStore(base []*Node, overlays map[string][]*Node, opts ...StoreOption) (*Store, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		base:     slices.Clone(base),
		overlays: make(map[string][]*Node, len(overlays)),
	}
	for role, forest := range overlays {
		s.overlays[role] = slices.Clone(forest)
	}

	if o.validate {
		if err := Validate(s.base); err != nil {
			return nil, fmt.Errorf("invalid base forest: %w", err)
		}
		for _, role := range s.Roles() {
			merged := append(slices.Clone(s.base), s.overlays[role]...)
			if err := Validate(merged); err != nil {
				return nil, fmt.Errorf("invalid forest for role %q: %w", role, err)
			}
		}
	}

	return s, nil
}

// BaseForest returns the roots every role sees
func (s *Store) BaseForest() ([]*Node, error) {
	if len(s.base) == 0 {
		return nil, ErrNoBaseForest
	}
	return slices.Clone(s.base), nil
}

// Overlay returns the role-specific roots. Unmapped roles get nil.
func (s *Store) Overlay(role string) []*Node {
	return slices.Clone(s.overlays[role])
}

// HasRole reports whether an overlay is registered for role
func (s *Store) HasRole(role string) bool {
	_, ok := s.overlays[role]
	return ok
}

// Roles lists the mapped roles in sorted order
func (s *Store) Roles() []string {
	var roles []string
	for role := range s.overlays {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}
