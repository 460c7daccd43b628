// Package catalog loads the navigation catalog from its configured source
// and keeps the current menu store for the HTTP layer.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"pbgui-console/internal/menu"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Document is the on-disk shape of a catalog. JSON documents decode the
// same way since the YAML parser accepts JSON.
type Document struct {
	Base       []menu.NodeSpec            `yaml:"base" json:"base"`
	Overlays   map[string][]menu.NodeSpec `yaml:"overlays,omitempty" json:"overlays,omitempty"`
	Management []menu.NodeSpec            `yaml:"management,omitempty" json:"management,omitempty"`
}

// Options controls how a document is turned into a catalog
type Options struct {
	// Validate runs menu.Validate over the base forest, every role's
	// composed input and the management forest.
	Validate bool
}

func (o Options) storeOptions() []menu.StoreOption {
	if o.Validate {
		return []menu.StoreOption{menu.WithValidation()}
	}
	return nil
}

// Catalog is a built, immutable navigation catalog
type Catalog struct {
	Store *menu.Store
	// Management is the raw forest listed by the menu management page.
	// Disabled nodes are kept.
	Management []*menu.Node
}

// Build turns the document into a catalog
func (d *Document) Build(opts Options) (*Catalog, error) {
	base, err := menu.BuildForest(d.Base)
	if err != nil {
		return nil, fmt.Errorf("base forest: %w", err)
	}

	overlays := make(map[string][]*menu.Node, len(d.Overlays))
	for role, specs := range d.Overlays {
		forest, err := menu.BuildForest(specs)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", role, err)
		}
		overlays[role] = forest
	}

	store, err := menu.NewStore(base, overlays, opts.storeOptions()...)
	if err != nil {
		return nil, err
	}

	var management []*menu.Node
	if len(d.Management) > 0 {
		management, err = menu.BuildForest(d.Management)
		if err != nil {
			return nil, fmt.Errorf("management forest: %w", err)
		}
		if opts.Validate {
			if err := menu.Validate(management); err != nil {
				return nil, fmt.Errorf("management forest: %w", err)
			}
		}
	} else {
		management = managementFromStore(store)
	}

	return &Catalog{Store: store, Management: management}, nil
}

// managementFromStore lists the base forest followed by every overlay in
// role order, used when a source carries no separate management list.
func managementFromStore(store *menu.Store) []*menu.Node {
	base, _ := store.BaseForest()
	out := slices.Clone(base)
	for _, role := range store.Roles() {
		out = append(out, store.Overlay(role)...)
	}
	return out
}

// BuiltinDocument returns a fresh copy of the catalog shipped with the console
func BuiltinDocument() (*Document, error) {
	return LoadReader(bytes.NewReader(builtinYAML))
}

// Builtin returns the validated catalog shipped with the console
func Builtin() (*Catalog, error) {
	doc, err := BuiltinDocument()
	if err != nil {
		return nil, err
	}
	return doc.Build(Options{Validate: true})
}

// LoadFile reads a YAML or JSON catalog document from disk
func LoadFile(path string) (*Document, error) {
	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	file, err := root.Open(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return LoadReader(file)
}

// LoadReader decodes a catalog document
func LoadReader(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog document is empty")
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &doc, nil
}

// Roles lists the overlay roles of the document in sorted order
func (d *Document) Roles() []string {
	var roles []string
	for role := range d.Overlays {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}
