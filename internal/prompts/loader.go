// Package prompts holds the externalized LLM prompt templates, embedded at
// compile time. tailoring.json carries the resume and cover letter stages,
// guardrail.json the audit and bullet regeneration stages.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed *.json
var promptFS embed.FS

var (
	loadOnce sync.Once
	library  map[string]map[string]string
	loadErr  error
)

// load parses every embedded prompt file into the library. The set of files
// is fixed at compile time, so a parse failure is a packaging bug and is
// reported on every lookup.
func load() {
	entries, err := promptFS.ReadDir(".")
	if err != nil {
		loadErr = fmt.Errorf("read embedded prompts: %w", err)
		return
	}

	library = make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		raw, err := promptFS.ReadFile(entry.Name())
		if err != nil {
			loadErr = fmt.Errorf("read prompt file %s: %w", entry.Name(), err)
			return
		}
		var byKey map[string]string
		if err := json.Unmarshal(raw, &byKey); err != nil {
			loadErr = fmt.Errorf("parse prompt file %s: %w", entry.Name(), err)
			return
		}
		library[entry.Name()] = byKey
	}
}

// Get returns the template stored under key in the named embedded file.
func Get(filename, key string) (string, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return "", loadErr
	}

	byKey, ok := library[filename]
	if !ok {
		return "", fmt.Errorf("prompt file %s not embedded", filename)
	}
	prompt, ok := byKey[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for templates the pipeline cannot run without.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("load prompt: %v", err))
	}
	return prompt
}

// Format substitutes {{.Key}} placeholders with the given values. Unknown
// placeholders are left in place so a missing binding shows up in the
// rendered prompt instead of vanishing.
func Format(template string, data map[string]string) string {
	out := template
	for key, value := range data {
		out = strings.ReplaceAll(out, "{{."+key+"}}", value)
	}
	return out
}
