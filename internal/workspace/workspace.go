// Package workspace loads the workspace manifest and orders its packages
// so that every package is built after the packages it depends on.
package workspace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Package describes one CMake package of the workspace.
type Package struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Depends []string `yaml:"depends"`
}

// Manifest is the declared package set of a workspace.
type Manifest struct {
	Packages []Package `yaml:"packages"`
}

// Load reads and parses a workspace manifest from a YAML file. Packages
// without an explicit path default to a directory named like the package.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest YAML: %w", err)
	}
	seen := make(map[string]bool, len(m.Packages))
	for i := range m.Packages {
		pkg := &m.Packages[i]
		if pkg.Name == "" {
			return nil, fmt.Errorf("manifest package %d has no name", i)
		}
		if seen[pkg.Name] {
			return nil, fmt.Errorf("duplicate package %q in manifest", pkg.Name)
		}
		seen[pkg.Name] = true
		if pkg.Path == "" {
			pkg.Path = pkg.Name
		}
	}
	return &m, nil
}

// BuildOrder returns the packages in dependency postorder: dependencies
// first, dependents after. Order between independent packages follows the
// manifest.
func (m *Manifest) BuildOrder() ([]Package, error) {
	byName := make(map[string]Package, len(m.Packages))
	for _, pkg := range m.Packages {
		byName[pkg.Name] = pkg
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(m.Packages))
	ordered := make([]Package, 0, len(m.Packages))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving %q", name)
		}
		pkg, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown package %q in depends", name)
		}
		state[name] = visiting
		for _, dep := range pkg.Depends {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, pkg)
		return nil
	}

	for _, pkg := range m.Packages {
		if err := visit(pkg.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
