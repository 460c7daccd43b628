package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"pbgui-console/internal/database"
	"pbgui-console/internal/menu"
)

// Source produces a freshly built catalog on every call to Load
type Source interface {
	Name() string
	Load(ctx context.Context) (*Catalog, error)
}

// BuiltinSource serves the catalog embedded in the binary
type BuiltinSource struct{}

// NewBuiltinSource creates the builtin source
func NewBuiltinSource() *BuiltinSource {
	return &BuiltinSource{}
}

func (s *BuiltinSource) Name() string { return "builtin" }

// Load builds the embedded catalog. It is always validated.
func (s *BuiltinSource) Load(ctx context.Context) (*Catalog, error) {
	return Builtin()
}

// FileSource reads a catalog document from disk on every load, so edits
// to the file are picked up by a reload.
type FileSource struct {
	path string
	opts Options
}

// NewFileSource creates a source for the document at path
func NewFileSource(path string, opts Options) *FileSource {
	return &FileSource{path: path, opts: opts}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Load(ctx context.Context) (*Catalog, error) {
	doc, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	return doc.Build(s.opts)
}

// MenuRowLister is the part of the database repository the postgres
// source reads from
type MenuRowLister interface {
	ListMenuNodes(ctx context.Context) ([]database.MenuNodeRow, error)
}

// PostgresSource assembles the catalog from the menu_nodes table. Root rows
// with a NULL role form the base forest; every other root belongs to the
// overlay of its role. Descendants follow their root.
type PostgresSource struct {
	lister MenuRowLister
	opts   Options
}

// NewPostgresSource creates a source reading through lister
func NewPostgresSource(lister MenuRowLister, opts Options) *PostgresSource {
	return &PostgresSource{lister: lister, opts: opts}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Load(ctx context.Context) (*Catalog, error) {
	rows, err := s.lister.ListMenuNodes(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := DocumentFromRows(rows)
	if err != nil {
		return nil, err
	}
	return doc.Build(s.opts)
}

// DocumentFromRows turns table rows into a document. Rows are expected in
// sibling order; a row whose parent is missing, or that is only reachable
// through a cycle, is an error.
func DocumentFromRows(rows []database.MenuNodeRow) (*Document, error) {
	byID := make(map[int64]int, len(rows))
	children := make(map[int64][]int)
	var roots []int

	for i, row := range rows {
		if _, dup := byID[row.ID]; dup {
			return nil, fmt.Errorf("menu row %d: %w", row.ID, menu.ErrDuplicateID)
		}
		byID[row.ID] = i
		if row.ParentID == nil {
			roots = append(roots, i)
		} else {
			children[*row.ParentID] = append(children[*row.ParentID], i)
		}
	}

	for parentID := range children {
		if _, ok := byID[parentID]; !ok {
			return nil, fmt.Errorf("menu rows reference missing parent %d", parentID)
		}
	}

	reached := 0
	var toSpec func(i int) (menu.NodeSpec, error)
	toSpec = func(i int) (menu.NodeSpec, error) {
		reached++
		row := rows[i]
		spec, err := specFromRow(row)
		if err != nil {
			return spec, err
		}
		for _, c := range children[row.ID] {
			child, err := toSpec(c)
			if err != nil {
				return spec, err
			}
			spec.Children = append(spec.Children, child)
		}
		return spec, nil
	}

	doc := &Document{Overlays: make(map[string][]menu.NodeSpec)}
	for _, i := range roots {
		spec, err := toSpec(i)
		if err != nil {
			return nil, err
		}
		if role := rows[i].Role; role != nil {
			doc.Overlays[*role] = append(doc.Overlays[*role], spec)
		} else {
			doc.Base = append(doc.Base, spec)
		}
	}

	if reached != len(rows) {
		return nil, fmt.Errorf("menu rows contain a parent cycle (%d of %d rows reachable)", reached, len(rows))
	}
	return doc, nil
}

func specFromRow(row database.MenuNodeRow) (menu.NodeSpec, error) {
	status := row.Status
	spec := menu.NodeSpec{
		ID:       row.ID,
		ParentID: row.ParentID,
		Type:     row.Kind,
		Status:   &status,
		Route: menu.Route{
			Name:      row.Name,
			Path:      row.Path,
			Component: row.Component,
			Redirect:  row.Redirect,
		},
	}
	if row.AuthCode != nil {
		spec.AuthCode = *row.AuthCode
	}
	if len(row.Meta) > 0 {
		if err := json.Unmarshal(row.Meta, &spec.Meta); err != nil {
			return spec, fmt.Errorf("menu row %d: invalid meta: %w", row.ID, err)
		}
	}
	return spec, nil
}
