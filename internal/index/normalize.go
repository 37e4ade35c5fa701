package index

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/chartpub/chartpub/internal/registry"
)

// Options controls the post-processing rewrite of a generated index.
type Options struct {
	// RegistryURL is the registry root used to compute each chart's
	// canonical registry link (<root>/<name>).
	RegistryURL string
	// AddRegistryLinks prepends the canonical registry link to every
	// entry's url list.
	AddRegistryLinks bool
	// RemoveRegistryLinks strips the canonical registry link from every
	// entry's url list. Applied after add, so remove wins when both are set.
	RemoveRegistryLinks bool
}

// Document is a generated index held in untyped form. The generation
// toolchain emits fields this program does not model (digests, icons,
// dependency lists); rewriting the untyped form preserves all of them.
type Document map[string]any

// LoadDocument reads a generated index document for post-processing.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	// Decode into a plain map: yaml.v3 reuses a named map type for every
	// nested mapping, which would make the entry values Document instead
	// of map[string]any.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return Document(doc), nil
}

// SaveDocument persists a post-processed index document.
func SaveDocument(path string, doc Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// Normalize rewrites every release entry in doc: appVersion values are
// coerced to strings, and the registry-link policy is applied to each url
// list. A document without a usable entries mapping is left untouched; an
// empty index is pathological but not something the post-processor should
// mask by fabricating entries.
func Normalize(doc Document, opts Options, logger *log.Logger) {
	entries, ok := asMap(doc["entries"])
	if !ok {
		logger.Warn("index has no entries mapping, skipping post-processing")
		return
	}

	for name, raw := range entries {
		releases, ok := raw.([]any)
		if !ok {
			logger.Warn("malformed entry list, skipping", "chart", name)
			continue
		}
		for _, r := range releases {
			entry, ok := asMap(r)
			if !ok {
				continue
			}
			coerceAppVersion(name, entry, logger)
			applyLinkPolicy(name, entry, opts)
		}
	}
}

// coerceAppVersion forces appVersion to a string. Index-consuming clients
// expect the field string-typed; a non-string value indicates a manifest
// defect upstream, surfaced here as a warning.
func coerceAppVersion(name string, entry map[string]any, logger *log.Logger) {
	v, ok := entry["appVersion"]
	if !ok || v == nil {
		return
	}
	if _, isString := v.(string); isString {
		return
	}
	coerced := fmt.Sprintf("%v", v)
	logger.Warn("coercing non-string appVersion", "chart", name, "value", coerced)
	entry["appVersion"] = coerced
}

// applyLinkPolicy rewrites the url list per the configured registry-link
// policy. Add runs first and remove second, so remove wins if both flags
// are set.
func applyLinkPolicy(name string, entry map[string]any, opts Options) {
	if opts.RegistryURL == "" || (!opts.AddRegistryLinks && !opts.RemoveRegistryLinks) {
		return
	}
	link := registry.ChartURLs{Root: opts.RegistryURL}.Link(name)

	urls := stringList(entry["urls"])

	if opts.AddRegistryLinks {
		deduped := []string{link}
		for _, u := range urls {
			if u != link {
				deduped = append(deduped, u)
			}
		}
		urls = deduped
	}

	if opts.RemoveRegistryLinks {
		kept := urls[:0]
		for _, u := range urls {
			if u != link {
				kept = append(kept, u)
			}
		}
		urls = kept
	}

	entry["urls"] = urls
}

// asMap unwraps a decoded mapping. Documents assembled by hand or decoded
// directly into Document carry nested mappings typed Document, while
// LoadDocument yields plain map[string]any; both shapes are accepted.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// stringList reads an url list regardless of decode shape. A freshly
// decoded list is []any; a list Normalize has already rewritten is
// []string, so accepting both keeps repeated passes lossless.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
