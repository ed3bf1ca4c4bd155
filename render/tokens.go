// Package render turns structured visual descriptions into PNG images by
// building themed HTML and screenshotting it in headless Chrome.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed templates
var templatesFS embed.FS

// Tokens holds the design tokens injected into every template as CSS
// custom properties.
type Tokens map[string]string

// LoadTokens returns the embedded token set, with entries overridden by
// tokens.json in overrideDir when present.
func LoadTokens(overrideDir string) (Tokens, error) {
	data, err := templatesFS.ReadFile("templates/tokens.json")
	if err != nil {
		return nil, fmt.Errorf("embedded tokens: %w", err)
	}
	tokens := make(Tokens)
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parse embedded tokens: %w", err)
	}
	if overrideDir == "" {
		return tokens, nil
	}
	override, err := os.ReadFile(filepath.Join(overrideDir, "tokens.json"))
	if os.IsNotExist(err) {
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token overrides: %w", err)
	}
	extra := make(Tokens)
	if err := json.Unmarshal(override, &extra); err != nil {
		return nil, fmt.Errorf("parse token overrides: %w", err)
	}
	for k, v := range extra {
		tokens[k] = v
	}
	return tokens, nil
}

// CSSVars renders the tokens as CSS custom property declarations, sorted
// by name so output is stable.
func (t Tokens) CSSVars() template.CSS {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "--%s: %s;\n", name, t[name])
	}
	return template.CSS(b.String())
}
