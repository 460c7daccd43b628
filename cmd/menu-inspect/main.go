// Command menu-inspect loads a navigation catalog and prints the menu a
// role would receive. It is meant for checking catalog files before they
// are deployed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"pbgui-console/internal/catalog"
	"pbgui-console/internal/menu"
)

func main() {
	file := flag.String("file", "", "catalog document (YAML or JSON); the builtin catalog when empty")
	roles := flag.String("roles", "", "comma separated roles to compose for")
	codes := flag.String("codes", "", "comma separated access codes; no gating when empty")
	management := flag.Bool("management", false, "print the management forest instead of a composed menu")
	asJSON := flag.Bool("json", false, "print the forest as JSON")
	validate := flag.Bool("validate", true, "validate the catalog while loading")
	flag.Parse()

	cat, err := load(*file, *validate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	var forest []*menu.Node
	if *management {
		forest = cat.Management
	} else {
		forest, err = compose(cat, split(*roles), split(*codes))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compose menu: %v\n", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(forest); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode menu: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Roles with overlays: %s\n\n", strings.Join(cat.Store.Roles(), ", "))
	printForest(forest)
	fmt.Printf("\n%d nodes, ids: %v\n", menu.Count(forest), menu.FlattenIDs(forest))
	if authCodes := menu.CollectAuthCodes(forest); len(authCodes) > 0 {
		fmt.Printf("auth codes: %s\n", strings.Join(authCodes, ", "))
	}
}

func load(path string, validate bool) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Builtin()
	}
	doc, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return doc.Build(catalog.Options{Validate: validate})
}

func compose(cat *catalog.Catalog, roles, codes []string) ([]*menu.Node, error) {
	var gate menu.AccessCodes
	if codes != nil {
		gate = menu.NewAccessCodes(codes...)
	}
	for _, role := range roles {
		if !cat.Store.HasRole(role) {
			fmt.Fprintf(os.Stderr, "warning: role %q has no overlay\n", role)
		}
	}
	return menu.NewComposer(cat.Store).ComposeRoles(roles, gate)
}

func printForest(forest []*menu.Node) {
	menu.Walk(forest, func(n *menu.Node, depth int) bool {
		line := fmt.Sprintf("%s%d %s [%s]", strings.Repeat("  ", depth), n.ID(), n.Name(), n.Kind())
		if path := n.Route().Path; path != "" {
			line += " " + path
		}
		if !n.Enabled() {
			line += " (disabled)"
		}
		if code := n.AuthCode(); code != "" {
			line += " auth=" + code
		}
		fmt.Println(line)
		return true
	})
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
