package git

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// DefaultMessageTemplate is the commit message used for the version
// bump commit when the project configures none. The [skip ci] marker
// keeps Jenkins from building the commit the build itself pushed.
const DefaultMessageTemplate = "chore(release): bump version {previous} -> {version} [skip ci]"

// MessageData carries the values substituted into a message template.
type MessageData struct {
	// Version is the new version being released.
	Version string
	// Previous is the version before the bump.
	Previous string
	// Build is the CI build number, when known.
	Build string
	// Job is the CI job name, when known.
	Job string
}

// RenderMessage expands {version}, {previous}, {build} and {job}
// placeholders in template. An empty template falls back to
// DefaultMessageTemplate.
func RenderMessage(template string, data MessageData) (string, error) {
	if data.Version == "" {
		return "", WrapError(ErrInvalidMessage, "version is required")
	}
	if template == "" {
		template = DefaultMessageTemplate
	}

	msg := strings.NewReplacer(
		"{version}", data.Version,
		"{previous}", data.Previous,
		"{build}", data.Build,
		"{job}", data.Job,
	).Replace(template)

	if strings.TrimSpace(msg) == "" {
		return "", WrapError(ErrInvalidMessage, "rendered message is empty")
	}
	return msg, nil
}

// ValidateConventional checks that the subject line of message parses
// as a conventional commit (type, optional scope, description).
func ValidateConventional(message string) error {
	subject, _, _ := strings.Cut(message, "\n")
	if strings.TrimSpace(subject) == "" {
		return WrapError(ErrInvalidMessage, "subject line is empty")
	}

	machine := parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))
	if _, err := machine.Parse([]byte(subject)); err != nil {
		return WrapErrorf(ErrInvalidMessage, "%q: %v", subject, err)
	}
	return nil
}
