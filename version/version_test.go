package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantMajor uint64
		wantMinor uint64
		wantPatch uint64
		wantQual  string
	}{
		{
			name:      "bare triple",
			input:     "1.2.3",
			wantMajor: 1,
			wantMinor: 2,
			wantPatch: 3,
		},
		{
			name:      "snapshot qualifier",
			input:     "0.0.1-SNAPSHOT",
			wantMajor: 0,
			wantPatch: 1,
			wantQual:  "SNAPSHOT",
		},
		{
			name:      "release candidate qualifier",
			input:     "2.10.0-rc.1",
			wantMajor: 2,
			wantMinor: 10,
			wantQual:  "rc.1",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "two components",
			input:   "1.2",
			wantErr: true,
		},
		{
			name:    "four components",
			input:   "1.2.3.4",
			wantErr: true,
		},
		{
			name:    "v prefix",
			input:   "v1.2.3",
			wantErr: true,
		},
		{
			name:    "build metadata",
			input:   "1.2.3+build.7",
			wantErr: true,
		},
		{
			name:    "leading zeros",
			input:   "01.2.3",
			wantErr: true,
		},
		{
			name:    "whitespace",
			input:   " 1.2.3",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMajor, v.Major())
			assert.Equal(t, tt.wantMinor, v.Minor())
			assert.Equal(t, tt.wantPatch, v.Patch())
			assert.Equal(t, tt.wantQual, v.Qualifier())
			assert.Equal(t, tt.input, v.String())
		})
	}
}

func TestBump(t *testing.T) {
	tests := []struct {
		name  string
		input string
		part  Part
		want  string
	}{
		{
			name:  "patch",
			input: "1.2.3",
			part:  Patch,
			want:  "1.2.4",
		},
		{
			name:  "minor resets patch",
			input: "1.2.3",
			part:  Minor,
			want:  "1.3.0",
		},
		{
			name:  "major resets minor and patch",
			input: "1.2.3",
			part:  Major,
			want:  "2.0.0",
		},
		{
			name:  "snapshot increments and drops qualifier",
			input: "0.0.1-SNAPSHOT",
			part:  Patch,
			want:  "0.0.2",
		},
		{
			name:  "minor bump drops qualifier",
			input: "1.4.9-rc.2",
			part:  Minor,
			want:  "1.5.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MustParse(tt.input)
			got := v.Bump(tt.part)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, v.LessThan(got), "bumped version must order after the original")
		})
	}
}

func TestCompare(t *testing.T) {
	assert.True(t, MustParse("1.2.3-SNAPSHOT").LessThan(MustParse("1.2.3")))
	assert.True(t, MustParse("1.2.3").LessThan(MustParse("1.2.10")))
	assert.True(t, MustParse("1.9.0").LessThan(MustParse("1.10.0")))
	assert.True(t, MustParse("1.2.3").Equal(MustParse("1.2.3")))
	assert.Equal(t, 1, MustParse("2.0.0").Compare(MustParse("1.99.99")))
}

func TestParsePart(t *testing.T) {
	tests := []struct {
		input   string
		want    Part
		wantErr bool
	}{
		{input: "major", want: Major},
		{input: "minor", want: Minor},
		{input: "patch", want: Patch},
		{input: "MAJOR", wantErr: true},
		{input: "", wantErr: true},
		{input: "micro", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParsePart(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("not-a-version") })
}
