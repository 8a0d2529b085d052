package app

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bft-labs/serialbridge/internal/domain"
)

// Extractor narrows frame text to the parts matching a pattern.
// A nil Extractor passes frames through unchanged.
type Extractor struct {
	re *regexp.Regexp
}

// NewExtractor compiles pattern. An empty pattern returns a nil Extractor.
func NewExtractor(pattern string) (*Extractor, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", domain.ErrConfiguration, pattern, err)
	}
	return &Extractor{re: re}, nil
}

// Apply joins every match of the pattern in f.Text.
// Returns false when nothing matched and the frame should be dropped.
func (e *Extractor) Apply(f domain.Frame) (domain.Frame, bool) {
	if e == nil {
		return f, true
	}
	matches := e.re.FindAllString(f.Text, -1)
	if len(matches) == 0 {
		return domain.Frame{}, false
	}
	f.Text = strings.Join(matches, "")
	return f, true
}
