// Package language holds the fixed table of supported output languages.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/feichai0017/pdf-voice/internal/models"
)

var (
	ErrEmptyTable     = errors.New("language table has no entries")
	ErrUnknownDefault = errors.New("default language is not in the table")
)

// Entry maps a human-readable display name to a language code.
type Entry struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
}

// Language is a resolved table entry.
type Language struct {
	Name string
	Code string
	// Tag is the canonical BCP 47 form of Code, e.g. "zh-CN" for "zh-cn".
	Tag language.Tag
}

// Ref converts to the model representation.
func (l Language) Ref() models.LanguageRef {
	return models.LanguageRef{Name: l.Name, Code: l.Code}
}

// Table is immutable once built; it is safe to share between goroutines.
type Table struct {
	entries []Language
	byName  map[string]Language
	def     Language
}

// DefaultEntries is the built-in supported set. English is the source language.
var DefaultEntries = []Entry{
	{Name: "English", Code: "en"},
	{Name: "Spanish", Code: "es"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Italian", Code: "it"},
	{Name: "Portuguese", Code: "pt"},
	{Name: "Russian", Code: "ru"},
	{Name: "Japanese", Code: "ja"},
	{Name: "Korean", Code: "ko"},
	{Name: "Chinese", Code: "zh-cn"},
}

// DefaultName is the display name of the built-in source language.
const DefaultName = "English"

// NewTable validates entries and builds a table. defaultName must be one of
// the entries; it is the language that needs no translation.
func NewTable(entries []Entry, defaultName string) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{
		entries: make([]Language, 0, len(entries)),
		byName:  make(map[string]Language, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		code := strings.TrimSpace(e.Code)
		if name == "" || code == "" {
			return nil, fmt.Errorf("invalid language entry %q=%q", e.Name, e.Code)
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("invalid language code %q for %s: %w", code, name, err)
		}
		key := normalize(name)
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("duplicate language %q", name)
		}
		lang := Language{Name: name, Code: code, Tag: tag}
		t.byName[key] = lang
		t.entries = append(t.entries, lang)
	}

	def, ok := t.byName[normalize(defaultName)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, defaultName)
	}
	t.def = def
	return t, nil
}

// Default returns the built-in table.
func Default() *Table {
	t, err := NewTable(DefaultEntries, DefaultName)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve looks a display name up, ignoring case and surrounding space.
func (t *Table) Resolve(name string) (Language, bool) {
	lang, ok := t.byName[normalize(name)]
	return lang, ok
}

// IsDefault reports whether name designates the source language.
func (t *Table) IsDefault(name string) bool {
	return normalize(name) == normalize(t.def.Name)
}

// Default returns the source language.
func (t *Table) Default() Language {
	return t.def
}

// Languages returns the entries in declaration order.
func (t *Table) Languages() []Language {
	out := make([]Language, len(t.entries))
	copy(out, t.entries)
	return out
}

// Names returns the display names sorted alphabetically.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for _, l := range t.entries {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
