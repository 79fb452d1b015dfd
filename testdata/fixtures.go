// Package testdata embeds scripted performances used by tests and by
// `handchord simulate`.
package testdata

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed scripts/*.json
var scriptsFS embed.FS

// Script returns the raw JSON of an embedded script, e.g. "scenario".
func Script(name string) ([]byte, error) {
	data, err := scriptsFS.ReadFile("scripts/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", name, err)
	}
	return data, nil
}

// Scripts lists the names of the embedded scripts.
func Scripts() ([]string, error) {
	entries, err := fs.ReadDir(scriptsFS, "scripts")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name()[:len(entry.Name())-len(".json")])
	}
	sort.Strings(names)
	return names, nil
}
