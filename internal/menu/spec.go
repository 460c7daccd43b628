package menu

import (
	"fmt"
)

// NodeSpec is the loader-facing definition of a node. Catalog files, the
// database source and the Redis cache all decode into NodeSpec and go
// through Build, which is the only way to obtain a *Node.
type NodeSpec struct {
	ID       int64  `json:"id" yaml:"id"`
	ParentID *int64 `json:"pid,omitempty" yaml:"pid,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Status   *int   `json:"status,omitempty" yaml:"status,omitempty"`
	AuthCode string `json:"authCode,omitempty" yaml:"authCode,omitempty"`
	Route    `yaml:",inline"`
	Meta     Meta       `json:"meta" yaml:"meta"`
	Children []NodeSpec `json:"children,omitempty" yaml:"children,omitempty"`
}

// Build validates the structural rules of a single subtree and produces
// immutable nodes. A missing type resolves to catalog when the definition has
// children and to menu otherwise; a missing status means enabled. A
// missing pid on a child is filled from its enclosing node.
func (s NodeSpec) Build() (*Node, error) {
	return s.build(nil)
}

func (s NodeSpec) build(parent *int64) (*Node, error) {
	kind, err := s.kind()
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", s.ID, err)
	}

	status := StatusEnabled
	if s.Status != nil {
		switch Status(*s.Status) {
		case StatusEnabled, StatusDisabled:
			status = Status(*s.Status)
		default:
			return nil, fmt.Errorf("node %d: invalid status %d", s.ID, *s.Status)
		}
	}

	if !kind.AllowsChildren() && len(s.Children) > 0 {
		return nil, fmt.Errorf("node %d: %w", s.ID, ErrButtonChildren)
	}

	node := &Node{
		id:       s.ID,
		kind:     kind,
		status:   status,
		authCode: s.AuthCode,
		route:    s.Route,
		meta:     s.Meta.clone(),
	}

	switch {
	case s.ParentID != nil:
		pid := *s.ParentID
		node.parentID = &pid
	case parent != nil:
		pid := *parent
		node.parentID = &pid
	}

	if len(s.Children) > 0 {
		id := s.ID
		node.children = make([]*Node, 0, len(s.Children))
		for _, childSpec := range s.Children {
			child, err := childSpec.build(&id)
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, child)
		}
	}

	return node, nil
}

func (s NodeSpec) kind() (Kind, error) {
	if s.Type == "" {
		if len(s.Children) > 0 {
			return KindCatalog, nil
		}
		return KindMenu, nil
	}
	return ParseKind(s.Type)
}

// BuildForest builds every root spec in order
func BuildForest(specs []NodeSpec) ([]*Node, error) {
	forest := make([]*Node, 0, len(specs))
	for _, spec := range specs {
		node, err := spec.Build()
		if err != nil {
			return nil, err
		}
		forest = append(forest, node)
	}
	return forest, nil
}
