// Package pom reads and rewrites Maven project descriptors (pom.xml).
//
// The descriptor is the single source of truth for the application version.
// Reading goes through a real XML parse; writing is a byte-preserving splice
// that changes only the content of the project-level version element, so
// formatting, comments, and element order survive a bump. Every write is
// re-validated by the independent text-search extraction in extract.go
// before it is committed to disk.
package pom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/elorm116/java-cicd-demo/fs"
	"github.com/elorm116/java-cicd-demo/version"
)

var (
	// ErrNotFound indicates the descriptor file does not exist.
	ErrNotFound = errors.New("descriptor not found")

	// ErrMalformed indicates the descriptor is not a well-formed Maven POM.
	ErrMalformed = errors.New("descriptor is not a well-formed POM")

	// ErrVersionMissing indicates the project declares no version element of
	// its own (for example when it is inherited from a parent POM).
	ErrVersionMissing = errors.New("project version element missing")

	// ErrVersionIndirect indicates the version element is a property
	// reference that cannot be resolved from the descriptor's properties.
	ErrVersionIndirect = errors.New("project version is an unresolvable property reference")
)

// Descriptor is a loaded Maven project descriptor.
type Descriptor struct {
	fsys fs.Filesystem
	path string
	raw  []byte

	project projectXML
}

type projectXML struct {
	XMLName    xml.Name  `xml:"project"`
	GroupID    string    `xml:"groupId"`
	ArtifactID string    `xml:"artifactId"`
	Version    string    `xml:"version"`
	Packaging  string    `xml:"packaging"`
	Parent     parentXML `xml:"parent"`
	Properties propsXML  `xml:"properties"`
}

type parentXML struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// propsXML collects the free-form <properties> children into a map.
type propsXML struct {
	entries map[string]string
}

// UnmarshalXML implements xml.Unmarshaler for the dynamic property keys.
func (p *propsXML) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	p.entries = make(map[string]string)
	for {
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("read properties: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return fmt.Errorf("decode property %q: %w", t.Name.Local, err)
			}
			p.entries[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			return nil
		}
	}
}

// Load reads and parses the descriptor at path.
func Load(fsys fs.Filesystem, path string) (*Descriptor, error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("stat descriptor %q: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}

	raw, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor %q: %w", path, err)
	}

	project, err := parseProject(raw)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor %q: %w", path, err)
	}

	return &Descriptor{
		fsys:    fsys,
		path:    path,
		raw:     raw,
		project: project,
	}, nil
}

func parseProject(raw []byte) (projectXML, error) {
	var project projectXML
	if err := xml.Unmarshal(raw, &project); err != nil {
		return projectXML{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if project.XMLName.Local != "project" {
		return projectXML{}, fmt.Errorf("%w: root element is %q, want \"project\"",
			ErrMalformed, project.XMLName.Local)
	}
	return project, nil
}

// Path returns the descriptor's path within its filesystem.
func (d *Descriptor) Path() string { return d.path }

// Raw returns a copy of the descriptor bytes as last read or written.
func (d *Descriptor) Raw() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// GroupID returns the project group ID, falling back to the parent's when
// the project inherits it.
func (d *Descriptor) GroupID() string {
	if g := strings.TrimSpace(d.project.GroupID); g != "" {
		return g
	}
	return strings.TrimSpace(d.project.Parent.GroupID)
}

// ArtifactID returns the project artifact ID.
func (d *Descriptor) ArtifactID() string {
	return strings.TrimSpace(d.project.ArtifactID)
}

// Packaging returns the project packaging, defaulting to "jar" as Maven does.
func (d *Descriptor) Packaging() string {
	if p := strings.TrimSpace(d.project.Packaging); p != "" {
		return p
	}
	return "jar"
}

// Version resolves the project version.
//
// A version element holding a property reference such as ${revision} is
// resolved one level from <properties>. A missing element is
// ErrVersionMissing (version inheritance from a parent POM gives this
// project nothing to bump); an unresolvable reference is ErrVersionIndirect.
func (d *Descriptor) Version() (version.Version, error) {
	raw, err := resolveVersion(d.project)
	if err != nil {
		return version.Version{}, err
	}
	v, err := version.Parse(raw)
	if err != nil {
		return version.Version{}, fmt.Errorf("project version %q: %w", raw, err)
	}
	return v, nil
}

func resolveVersion(project projectXML) (string, error) {
	raw := strings.TrimSpace(project.Version)
	if raw == "" {
		if strings.TrimSpace(project.Parent.Version) != "" {
			return "", fmt.Errorf("%w (version is inherited from parent %s)",
				ErrVersionMissing, strings.TrimSpace(project.Parent.ArtifactID))
		}
		return "", ErrVersionMissing
	}

	if name, ok := propertyRef(raw); ok {
		val, found := project.Properties.entries[name]
		if !found {
			return "", fmt.Errorf("%w: ${%s} is not defined in <properties>", ErrVersionIndirect, name)
		}
		if _, nested := propertyRef(val); nested {
			return "", fmt.Errorf("%w: ${%s} resolves to another property reference %q",
				ErrVersionIndirect, name, val)
		}
		return val, nil
	}

	return raw, nil
}

// propertyRef reports whether s is a Maven property reference like
// ${revision}, returning the property name.
func propertyRef(s string) (string, bool) {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") && len(s) > 3 {
		return s[2 : len(s)-1], true
	}
	return "", false
}
