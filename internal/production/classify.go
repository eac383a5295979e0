package production

import (
	"strings"

	"prodboard/internal/core"
)

// ProcessGroupIndex maps a process name or alias to its display group.
type ProcessGroupIndex map[string]core.Group

// BuildProcessGroupIndex registers both the name and the alias of every
// process option so rows classify whichever form they were stored with.
// Options of other categories are ignored.
func BuildProcessGroupIndex(processes []core.MetadataOption) ProcessGroupIndex {
	idx := make(ProcessGroupIndex, len(processes)*2)
	for _, opt := range processes {
		if opt.Category != "" && opt.Category != core.CategoryProcess {
			continue
		}
		g := opt.Group
		if !g.Valid() {
			g = core.DefaultGroup
		}
		if n := opt.Name.String(); n != "" {
			idx[n] = g
		}
		if a := opt.Alias.String(); a != "" {
			idx[a] = g
		}
	}
	return idx
}

// Classify returns the group of the process encoded in item, or
// core.DefaultGroup when the process has no mapping.
func Classify(item string, idx ProcessGroupIndex) core.Group {
	g, _ := ClassifyReport(item, idx)
	return g
}

// ClassifyReport is Classify that also reports whether a mapping was found.
func ClassifyReport(item string, idx ProcessGroupIndex) (core.Group, bool) {
	code := strings.TrimSpace(core.ProcessCode(item))
	if g, ok := idx[code]; ok {
		return g, true
	}
	return core.DefaultGroup, false
}
