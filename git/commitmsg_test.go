package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     MessageData
		want     string
		wantErr  bool
	}{
		{
			name:     "default template",
			template: "",
			data:     MessageData{Version: "0.0.4", Previous: "0.0.3"},
			want:     "chore(release): bump version 0.0.3 -> 0.0.4 [skip ci]",
		},
		{
			name:     "custom template with build",
			template: "ci: release {version} (build {build})",
			data:     MessageData{Version: "1.2.0", Build: "42"},
			want:     "ci: release 1.2.0 (build 42)",
		},
		{
			name:     "job placeholder",
			template: "chore: {job} published {version}",
			data:     MessageData{Version: "1.0.0", Job: "demo-pipeline"},
			want:     "chore: demo-pipeline published 1.0.0",
		},
		{
			name:     "missing version",
			template: "release {version}",
			data:     MessageData{},
			wantErr:  true,
		},
		{
			name:     "template renders to whitespace",
			template: "  {build}  ",
			data:     MessageData{Version: "1.0.0"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderMessage(tt.template, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateConventional(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		for _, msg := range []string{
			"chore(release): bump version 0.0.3 -> 0.0.4 [skip ci]",
			"fix: correct version extraction",
			"feat(pipeline): add registry verification",
		} {
			assert.NoError(t, ValidateConventional(msg), msg)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		for _, msg := range []string{
			"bumped the version",
			"Release 0.0.4",
			"",
			"   \nfix: body only",
		} {
			err := ValidateConventional(msg)
			require.Error(t, err, msg)
			assert.ErrorIs(t, err, ErrInvalidMessage)
		}
	})

	t.Run("only subject line is parsed", func(t *testing.T) {
		msg := "chore(release): bump version\n\nnot a conventional body, which is fine"
		assert.NoError(t, ValidateConventional(msg))
	})
}
