package pom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/elorm116/java-cicd-demo/version"
)

// SetVersion rewrites the project version to v, leaving every other byte of
// the descriptor untouched. When the version element holds a property
// reference such as ${revision}, the referenced property's value is
// rewritten instead.
//
// The rewritten bytes are re-validated through Verify before they reach the
// filesystem; a write that cannot be re-extracted exactly never lands.
func (d *Descriptor) SetVersion(v version.Version) error {
	target := []string{"project", "version"}
	if name, ok := propertyRef(strings.TrimSpace(d.project.Version)); ok {
		if _, found := d.project.Properties.entries[name]; !found {
			return fmt.Errorf("%w: ${%s} is not defined in <properties>", ErrVersionIndirect, name)
		}
		target = []string{"project", "properties", name}
	}

	sp, found, err := contentSpan(d.raw, target)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no <%s> element", ErrVersionMissing, strings.Join(target[1:], "><"))
	}
	if !bytes.HasPrefix(d.raw[sp.end:], []byte("</")) {
		return fmt.Errorf("%w: <%s> is self-closing", ErrVersionMissing, target[len(target)-1])
	}

	out := make([]byte, 0, len(d.raw)+len(v.String()))
	out = append(out, d.raw[:sp.start]...)
	out = append(out, v.String()...)
	out = append(out, d.raw[sp.end:]...)

	got, err := Verify(out)
	if err != nil {
		return fmt.Errorf("validate rewritten descriptor: %w", err)
	}
	if !got.Equal(v) {
		return fmt.Errorf("%w: wrote %s, re-extracted %s", ErrExtractMismatch, v, got)
	}

	perm := os.FileMode(0o644)
	if info, statErr := d.fsys.Stat(d.path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := d.fsys.WriteFile(d.path, out, perm); err != nil {
		return fmt.Errorf("write descriptor %q: %w", d.path, err)
	}

	project, err := parseProject(out)
	if err != nil {
		return fmt.Errorf("reparse descriptor %q: %w", d.path, err)
	}
	d.raw = out
	d.project = project
	return nil
}

// span is a half-open byte range [start, end) within the descriptor.
type span struct {
	start int64
	end   int64
}

// contentSpan locates the byte range holding the text content of the first
// element at the given root-first path, using decoder offsets so the
// surrounding bytes are never disturbed.
func contentSpan(raw []byte, path []string) (span, bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var stack []string
	start := int64(-1)
	prev := int64(0)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return span{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if start < 0 && pathEqual(stack, path) {
				start = dec.InputOffset()
			}
		case xml.EndElement:
			if start >= 0 && pathEqual(stack, path) {
				// prev is the offset where this end tag begins.
				return span{start: start, end: prev}, true, nil
			}
			stack = stack[:len(stack)-1]
		}
		prev = dec.InputOffset()
	}

	return span{}, false, nil
}

func pathEqual(stack, path []string) bool {
	if len(stack) != len(path) {
		return false
	}
	for i := range stack {
		if stack[i] != path[i] {
			return false
		}
	}
	return true
}
