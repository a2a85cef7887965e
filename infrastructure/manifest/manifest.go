package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/nextver/nextver/domain"
)

// KnownSections lists the manifest sections that declare dependencies.
var KnownSections = []string{
	"dependencies",
	"devDependencies",
	"peerDependencies",
	"optionalDependencies",
}

// Entry is one name/specifier pair from a section.
type Entry struct {
	Name      string
	Specifier string
}

// Section is one dependency section in manifest order.
type Section struct {
	Name    string
	Entries []Entry
}

// Document is a parsed package.json, keeping both the structured sections
// (in declaration order) and the raw text for round-trip-preserving rewrite.
type Document struct {
	raw      []byte
	sections []Section
}

// Load reads and parses a manifest file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %w", path, err)
	}
	return doc, nil
}

// Parse decodes the dependency sections of a manifest, preserving their
// declaration order. Fields outside the known sections are skipped.
func Parse(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("manifest root is not a JSON object")
	}

	known := make(map[string]bool, len(KnownSections))
	for _, s := range KnownSections {
		known[s] = true
	}

	doc := &Document{raw: raw}
	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return nil, fmt.Errorf("invalid JSON: %w", keyErr)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("manifest has a non-string object key")
		}

		if !known[key] {
			if skipErr := skipValue(dec); skipErr != nil {
				return nil, fmt.Errorf("invalid JSON: %w", skipErr)
			}
			continue
		}

		section, secErr := parseSection(dec, key)
		if secErr != nil {
			return nil, secErr
		}
		doc.sections = append(doc.sections, section)
	}

	return doc, nil
}

// Raw returns the original manifest text.
func (d *Document) Raw() []byte { return d.raw }

// Sections returns the names of the dependency sections present, in order.
func (d *Document) Sections() []string {
	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.Name)
	}
	return names
}

// Dependencies returns the declared dependencies in manifest order. When
// include is non-empty, only the named sections are returned.
func (d *Document) Dependencies(include []string) []domain.Dependency {
	wanted := make(map[string]bool, len(include))
	for _, s := range include {
		wanted[s] = true
	}

	var deps []domain.Dependency
	for _, section := range d.sections {
		if len(include) > 0 && !wanted[section.Name] {
			continue
		}
		for _, entry := range section.Entries {
			deps = append(deps, domain.Dependency{
				Name:      entry.Name,
				Specifier: entry.Specifier,
				Section:   section.Name,
			})
		}
	}
	return deps
}

func parseSection(dec *json.Decoder, name string) (Section, error) {
	tok, err := dec.Token()
	if err != nil {
		return Section{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Section{}, fmt.Errorf("section %q is not an object", name)
	}

	section := Section{Name: name}
	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return Section{}, fmt.Errorf("invalid JSON: %w", keyErr)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Section{}, fmt.Errorf("section %q has a non-string key", name)
		}

		valTok, valErr := dec.Token()
		if valErr != nil {
			return Section{}, fmt.Errorf("invalid JSON: %w", valErr)
		}
		if value, isString := valTok.(string); isString {
			section.Entries = append(section.Entries, Entry{Name: key, Specifier: value})
			continue
		}
		if delim, isDelim := valTok.(json.Delim); isDelim && (delim == '{' || delim == '[') {
			if skipErr := skipOpened(dec); skipErr != nil {
				return Section{}, fmt.Errorf("invalid JSON: %w", skipErr)
			}
		}
		// non-string scalar specifiers are ignored
	}

	if _, err = dec.Token(); err != nil { // closing brace
		return Section{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return section, nil
}

// skipValue consumes the next value, descending into objects and arrays.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok && (delim == '{' || delim == '[') {
		return skipOpened(dec)
	}
	return nil
}

// skipOpened consumes tokens until the already-opened object/array closes.
func skipOpened(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// Patch replaces each resolved dependency's old specifier with the new one in
// the raw manifest text, matching only inside the declared section so that an
// identical name/value pair elsewhere is left alone. Every byte outside the
// touched fields is preserved.
func Patch(raw []byte, resolutions []domain.Resolution) ([]byte, error) {
	text := string(raw)

	for _, res := range resolutions {
		if !res.Updated() {
			continue
		}

		start, end, err := sectionBounds(text, res.Section)
		if err != nil {
			return nil, err
		}
		body := text[start:end]

		pattern := regexp.MustCompile(
			`("` + regexp.QuoteMeta(res.Name) + `"\s*:\s*")` +
				regexp.QuoteMeta(res.OldSpecifier) + `(")`)

		m := pattern.FindStringSubmatchIndex(body)
		if m == nil {
			return nil, fmt.Errorf("dependency %q not found in section %q", res.Name, res.Section)
		}
		body = body[:m[3]] + res.NewSpecifier + body[m[4]:]
		text = text[:start] + body + text[end:]
	}

	return []byte(text), nil
}

// sectionBounds locates the byte range of a section's object body, string
// and escape aware.
func sectionBounds(text, section string) (int, int, error) {
	keyPattern := regexp.MustCompile(`"` + regexp.QuoteMeta(section) + `"\s*:\s*\{`)
	loc := keyPattern.FindStringIndex(text)
	if loc == nil {
		return 0, 0, fmt.Errorf("section %q not found in manifest", section)
	}

	depth := 0
	inString := false
	escaped := false
	for i := loc[1] - 1; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return loc[1] - 1, i + 1, nil
			}
		}
	}

	return 0, 0, fmt.Errorf("section %q is not terminated", section)
}
