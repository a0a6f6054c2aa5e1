// Package style maps named persona presets to system-prompt modifiers.
// Presets are compiled in; an optional YAML overlay adds or overrides
// entries without a rebuild.
package style

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

// DefaultStyle is reserved: its modifier is always empty.
const DefaultStyle = "default"

var builtins = map[string]string{
	DefaultStyle:   "",
	"professional": "Respond in a professional, measured tone. Prefer precise wording over casual phrasing.",
	"casual":       "Respond in a relaxed, conversational tone, like a friend explaining something.",
	"academic":     "Respond like an academic: define terms, qualify claims, and structure the answer.",
	"concise":      "Respond as briefly as possible. Short sentences, no preamble, no filler.",
	"socratic":     "Respond by asking guiding questions before giving the answer.",
}

type Registry struct {
	mu     sync.RWMutex
	log    *logger.Logger
	styles map[string]string
}

// NewRegistry loads the built-in presets, then applies the overlay file
// at STYLE_PRESETS_PATH when set. A missing or broken overlay logs and
// keeps the built-ins.
func NewRegistry(log *logger.Logger) *Registry {
	r := &Registry{
		log:    log.With("service", "StyleRegistry"),
		styles: map[string]string{},
	}
	for k, v := range builtins {
		r.styles[k] = v
	}
	if path := strings.TrimSpace(os.Getenv("STYLE_PRESETS_PATH")); path != "" {
		if err := r.loadOverlay(path); err != nil {
			r.log.Warn("style overlay not applied", "path", path, "error", err)
		}
	}
	return r
}

func (r *Registry) loadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay map[string]string
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range overlay {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" || k == DefaultStyle {
			// default stays empty no matter what the overlay says
			continue
		}
		r.styles[k] = strings.TrimSpace(v)
	}
	r.log.Info("style overlay applied", "path", path, "styles", len(overlay))
	return nil
}

// Modifier returns the prompt modifier for a style id. Unknown ids fall
// back to the default (empty) modifier.
func (r *Registry) Modifier(styleID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.styles[strings.TrimSpace(strings.ToLower(styleID))]
	if !ok {
		return ""
	}
	return m
}

// Names lists the registered style ids.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.styles))
	for k := range r.styles {
		out = append(out, k)
	}
	return out
}

// Apply prepends the style's modifier to the base prompt. An empty
// modifier returns the base unchanged.
func (r *Registry) Apply(base, styleID, separator string) string {
	m := r.Modifier(styleID)
	if m == "" {
		return base
	}
	if separator == "" {
		separator = "\n\n"
	}
	return m + separator + base
}
