package production

import (
	"strings"

	"prodboard/internal/core"
)

// GroupMetadata partitions raw metadata rows by category, keeping the first
// occurrence of each name in the order it was seen. Rows with an unknown
// category or a blank name are dropped. A missing or unrecognized group
// falls back to core.DefaultGroup.
func GroupMetadata(raw []core.MetadataOption) core.DropdownOptions {
	out := make(core.DropdownOptions, len(core.Categories))
	seen := make(map[core.Category]map[string]struct{}, len(core.Categories))
	for _, c := range core.Categories {
		out[c] = []core.MetadataOption{}
		seen[c] = map[string]struct{}{}
	}

	for _, r := range raw {
		cat, ok := parseCategory(string(r.Category))
		if !ok {
			continue
		}
		name := r.Name.String()
		if name == "" {
			continue
		}
		if _, dup := seen[cat][name]; dup {
			continue
		}
		seen[cat][name] = struct{}{}

		g, err := core.ParseGroup(string(r.Group))
		if err != nil {
			g = core.DefaultGroup
		}
		out[cat] = append(out[cat], core.MetadataOption{
			Category: cat,
			Name:     core.Text(name),
			Alias:    core.Text(r.Alias.String()),
			Group:    g,
		})
	}
	return out
}

func parseCategory(s string) (core.Category, bool) {
	for _, c := range core.Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// ProcessNames lists the display names of the processes mapped to g.
func ProcessNames(opts core.DropdownOptions, g core.Group) []string {
	var names []string
	for _, p := range opts[core.CategoryProcess] {
		if p.Group == g {
			names = append(names, p.Name.String())
		}
	}
	return names
}
