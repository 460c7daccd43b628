// Package menu models the console's role-scoped navigation and permission tree.
//
// A forest is an ordered slice of root nodes. Nodes are immutable once built:
// every accessor hands back copies, and composition produces new nodes rather
// than editing the catalog it reads from. That makes a composed forest safe to
// share between goroutines without locking.
package menu

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Kind is the closed set of node kinds in the navigation tree
type Kind uint8

const (
	// KindCatalog groups other nodes and has no navigation target
	KindCatalog Kind = iota + 1
	// KindMenu is a navigable page
	KindMenu
	// KindButton is an in-page permission with no navigation target
	KindButton
	// KindEmbedded is a page rendered in an iframe
	KindEmbedded
	// KindLink opens an external URL
	KindLink
)

var kindNames = map[Kind]string{
	KindCatalog:  "catalog",
	KindMenu:     "menu",
	KindButton:   "button",
	KindEmbedded: "embedded",
	KindLink:     "link",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind converts a wire name such as "menu" into a Kind
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown menu node kind %q", s)
}

// Navigable reports whether nodes of this kind resolve to a page or URL
func (k Kind) Navigable() bool {
	return k == KindMenu || k == KindEmbedded || k == KindLink
}

// AllowsChildren is false only for buttons
func (k Kind) AllowsChildren() bool {
	return k != KindButton
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("invalid menu node kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Status is the activation flag of a node. Disabled nodes stay in the
// catalog but never reach a composed forest.
type Status int

const (
	StatusDisabled Status = 0
	StatusEnabled  Status = 1
)

func (s Status) String() string {
	if s == StatusEnabled {
		return "enabled"
	}
	return "disabled"
}

// Route carries the fields the route registration layer needs
type Route struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
	Redirect  string `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

// Meta is the presentation bag attached to a node. Only Order is read by
// the tree algorithms.
type Meta struct {
	Title                    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Icon                     string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Order                    *int     `json:"order,omitempty" yaml:"order,omitempty"`
	AffixTab                 bool     `json:"affixTab,omitempty" yaml:"affixTab,omitempty"`
	KeepAlive                bool     `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	HideInMenu               bool     `json:"hideInMenu,omitempty" yaml:"hideInMenu,omitempty"`
	Badge                    string   `json:"badge,omitempty" yaml:"badge,omitempty"`
	BadgeType                string   `json:"badgeType,omitempty" yaml:"badgeType,omitempty"`
	BadgeVariants            string   `json:"badgeVariants,omitempty" yaml:"badgeVariants,omitempty"`
	IframeSrc                string   `json:"iframeSrc,omitempty" yaml:"iframeSrc,omitempty"`
	Link                     string   `json:"link,omitempty" yaml:"link,omitempty"`
	Authority                []string `json:"authority,omitempty" yaml:"authority,omitempty"`
	MenuVisibleWithForbidden bool     `json:"menuVisibleWithForbidden,omitempty" yaml:"menuVisibleWithForbidden,omitempty"`
}

// OrderHint returns the explicit sibling ordering hint, if any
func (m Meta) OrderHint() (int, bool) {
	if m.Order == nil {
		return 0, false
	}
	return *m.Order, true
}

func (m Meta) clone() Meta {
	out := m
	if m.Order != nil {
		order := *m.Order
		out.Order = &order
	}
	out.Authority = slices.Clone(m.Authority)
	return out
}

// Node is one entry of the navigation tree. Build nodes with NodeSpec.Build
// or BuildForest; the zero value is not a valid node.
type Node struct {
	id       int64
	parentID *int64
	kind     Kind
	status   Status
	authCode string
	route    Route
	meta     Meta
	children []*Node
}

func (n *Node) ID() int64 { return n.id }

// ParentID returns the owning node's id. Roots report false.
func (n *Node) ParentID() (int64, bool) {
	if n.parentID == nil {
		return 0, false
	}
	return *n.parentID, true
}

func (n *Node) Kind() Kind       { return n.kind }
func (n *Node) Status() Status   { return n.status }
func (n *Node) Enabled() bool    { return n.status == StatusEnabled }
func (n *Node) AuthCode() string { return n.authCode }
func (n *Node) Route() Route     { return n.route }
func (n *Node) Name() string     { return n.route.Name }

// Meta returns a copy of the presentation bag
func (n *Node) Meta() Meta { return n.meta.clone() }

// Children returns a copy of the ordered child slice
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

func (n *Node) HasChildren() bool { return len(n.children) > 0 }

// withChildren returns a detached copy of n holding the given children
func (n *Node) withChildren(children []*Node) *Node {
	out := &Node{
		id:       n.id,
		kind:     n.kind,
		status:   n.status,
		authCode: n.authCode,
		route:    n.route,
		meta:     n.meta.clone(),
	}
	if n.parentID != nil {
		pid := *n.parentID
		out.parentID = &pid
	}
	if len(children) > 0 {
		out.children = children
	}
	return out
}

// Spec converts the node, and its subtree, back to its wire definition
func (n *Node) Spec() NodeSpec {
	status := int(n.status)
	spec := NodeSpec{
		ID:       n.id,
		Type:     n.kind.String(),
		Status:   &status,
		AuthCode: n.authCode,
		Route:    n.route,
		Meta:     n.meta.clone(),
	}
	if n.parentID != nil {
		pid := *n.parentID
		spec.ParentID = &pid
	}
	if len(n.children) > 0 {
		spec.Children = make([]NodeSpec, len(n.children))
		for i, child := range n.children {
			spec.Children[i] = child.Spec()
		}
	}
	return spec
}

// MarshalJSON renders the node in the shape the console frontend consumes
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Spec())
}

// Specs converts a forest back to wire definitions
func Specs(forest []*Node) []NodeSpec {
	out := make([]NodeSpec, len(forest))
	for i, n := range forest {
		out[i] = n.Spec()
	}
	return out
}
