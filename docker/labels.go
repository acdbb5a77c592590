package docker

import (
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// LabelSpec carries the build provenance attached to images as OCI
// annotation labels.
type LabelSpec struct {
	// Version is the application version baked into the image.
	Version string
	// Revision is the VCS commit the image was built from.
	Revision string
	// Source is the repository URL.
	Source string
	// BuildURL links back to the CI build that produced the image.
	BuildURL string
	// Created is the build timestamp; zero means now.
	Created time.Time
}

// StandardLabels renders the spec as OCI image annotations
// (org.opencontainers.image.*). Empty fields are omitted.
func StandardLabels(spec LabelSpec) map[string]string {
	created := spec.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}

	labels := map[string]string{
		ocispec.AnnotationCreated: created.UTC().Format(time.RFC3339),
	}
	if spec.Version != "" {
		labels[ocispec.AnnotationVersion] = spec.Version
	}
	if spec.Revision != "" {
		labels[ocispec.AnnotationRevision] = spec.Revision
	}
	if spec.Source != "" {
		labels[ocispec.AnnotationSource] = spec.Source
	}
	if spec.BuildURL != "" {
		labels[ocispec.AnnotationURL] = spec.BuildURL
	}
	return labels
}
