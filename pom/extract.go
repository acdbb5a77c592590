package pom

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/elorm116/java-cicd-demo/version"
)

var (
	// ErrExtractEmpty indicates the text search matched a version element
	// whose content is empty. A pipeline run must never proceed on an empty
	// extraction.
	ErrExtractEmpty = errors.New("version extraction returned an empty value")

	// ErrExtractMismatch indicates the text-search extraction and the XML
	// parse disagree about the project version.
	ErrExtractMismatch = errors.New("version extraction mismatch")
)

var (
	// parentBlock strips <parent>...</parent> so the parent's version element
	// cannot shadow the project version during text search.
	parentBlock = regexp.MustCompile(`(?s)<parent>.*?</parent>`)

	versionElem = regexp.MustCompile(`<version>\s*([^<]*?)\s*</version>`)
)

// extractRaw returns the text of the first version element found by plain
// text search after stripping the parent block.
func extractRaw(raw []byte) (string, error) {
	cleaned := parentBlock.ReplaceAll(raw, nil)
	m := versionElem.FindSubmatch(cleaned)
	if m == nil {
		return "", fmt.Errorf("%w: no <version> element matched", ErrVersionMissing)
	}
	s := strings.TrimSpace(string(m[1]))
	if s == "" {
		return "", ErrExtractEmpty
	}
	return s, nil
}

// Extract performs the text-search extraction of the project version.
//
// This is the grep-equivalent path: no XML parsing, first version element
// wins once the parent block is stripped. Property references cannot be
// resolved by text search alone and yield ErrVersionIndirect; use Verify for
// the resolved, cross-checked value.
func Extract(raw []byte) (version.Version, error) {
	s, err := extractRaw(raw)
	if err != nil {
		return version.Version{}, err
	}
	if _, ok := propertyRef(s); ok {
		return version.Version{}, fmt.Errorf("%w: text search found %q", ErrVersionIndirect, s)
	}
	v, err := version.Parse(s)
	if err != nil {
		return version.Version{}, fmt.Errorf("extracted version %q: %w", s, err)
	}
	return v, nil
}

// Verify resolves the project version through both the XML parse and the
// text search and requires them to agree. Returns the agreed version.
//
// Every descriptor write goes through this check, so a run can never carry
// an empty or ambiguous version forward into image tags or commit messages.
func Verify(raw []byte) (version.Version, error) {
	project, err := parseProject(raw)
	if err != nil {
		return version.Version{}, err
	}
	resolved, err := resolveVersion(project)
	if err != nil {
		return version.Version{}, err
	}
	parsed, err := version.Parse(resolved)
	if err != nil {
		return version.Version{}, fmt.Errorf("project version %q: %w", resolved, err)
	}

	s, err := extractRaw(raw)
	if err != nil {
		return version.Version{}, err
	}
	if name, ok := propertyRef(s); ok {
		val, found := project.Properties.entries[name]
		if !found {
			return version.Version{}, fmt.Errorf("%w: ${%s} is not defined in <properties>",
				ErrVersionIndirect, name)
		}
		s = val
	}
	text, err := version.Parse(s)
	if err != nil {
		return version.Version{}, fmt.Errorf("extracted version %q: %w", s, err)
	}

	if !text.Equal(parsed) {
		return version.Version{}, fmt.Errorf("%w: text search found %s, XML parse found %s",
			ErrExtractMismatch, text, parsed)
	}
	return parsed, nil
}
