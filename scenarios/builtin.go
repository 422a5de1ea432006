package scenarios

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtins lists the names of the scenarios that ship with the binary,
// sorted.
func Builtins() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Resolve loads a scenario by builtin name first, file path second.
func Resolve(name string) (*Def, error) {
	if data, err := builtinFS.ReadFile("builtin/" + name + ".yaml"); err == nil {
		return Parse(data)
	}
	def, err := Load(name)
	if err != nil {
		return nil, fmt.Errorf("scenario %q (builtins: %s): %w", name, strings.Join(Builtins(), ", "), err)
	}
	return def, nil
}
