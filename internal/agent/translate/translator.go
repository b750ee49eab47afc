// Package translate hands text to a remote machine translation provider.
package translate

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrTranslationFailed wraps every provider failure.
var ErrTranslationFailed = errors.New("translation failed")

// Translator translates text into the language identified by targetCode.
// The source language is detected by the provider.
type Translator interface {
	Translate(ctx context.Context, text, targetCode string) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, text, targetCode string) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, text, targetCode string) (string, error) {
	return f(ctx, text, targetCode)
}

// SplitChunks splits text into pieces of at most limit runes. It cuts on line
// boundaries where it can and keeps the line breaks inside the pieces, so
// concatenating the chunks gives back the input. A single line longer than
// limit is cut by runes.
func SplitChunks(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n <= limit {
			current.WriteString(line)
			size += n
			continue
		}
		flush()
		for n > limit {
			head, rest := splitRunes(line, limit)
			chunks = append(chunks, head)
			line = rest
			n -= limit
		}
		current.WriteString(line)
		size = n
	}
	flush()
	return chunks
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
