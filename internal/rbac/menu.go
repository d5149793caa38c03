package rbac

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed menu.yaml
var menuYAML []byte

// MenuItem is one sidebar entry. Items with children are groups and carry no path.
type MenuItem struct {
	Module   string     `yaml:"module" json:"module"`
	Title    string     `yaml:"title" json:"title"`
	Path     string     `yaml:"path,omitempty" json:"path,omitempty"`
	Icon     string     `yaml:"icon,omitempty" json:"icon,omitempty"`
	Children []MenuItem `yaml:"children,omitempty" json:"children,omitempty"`
}

func loadMenu() ([]MenuItem, error) {
	var menu []MenuItem
	if err := yaml.Unmarshal(menuYAML, &menu); err != nil {
		return nil, fmt.Errorf("failed to parse sidebar menu: %w", err)
	}
	return menu, nil
}

// Sidebar returns the menu filtered to what roleID may view.
// A group is shown only when at least one child is.
func (r *Enforcer) Sidebar(roleID int) ([]MenuItem, error) {
	return r.filter(r.menu, roleID)
}

func (r *Enforcer) filter(items []MenuItem, roleID int) ([]MenuItem, error) {
	out := []MenuItem{}
	for _, item := range items {
		if len(item.Children) > 0 {
			children, err := r.filter(item.Children, roleID)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				continue
			}
			item.Children = children
			out = append(out, item)
			continue
		}

		ok, err := r.CanView(roleID, item.Module)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
