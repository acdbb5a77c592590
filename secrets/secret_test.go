package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString(t *testing.T) {
	s := &Secret{Value: []byte("hunter2")}
	assert.Equal(t, "hunter2", s.String())
	assert.Equal(t, "hunter2", s.String(), "repeated reads allowed without AutoClear")
}

func TestSecretStringAutoClear(t *testing.T) {
	s := &Secret{Value: []byte("hunter2"), AutoClear: true}
	assert.Equal(t, "hunter2", s.String())
	assert.Empty(t, s.String())
	assert.Nil(t, s.Value)
}

func TestSecretBytesReturnsCopy(t *testing.T) {
	s := &Secret{Value: []byte("abc")}

	b := s.Bytes()
	b[0] = 'X'

	assert.Equal(t, []byte("abc"), s.Value, "mutating the copy must not affect the secret")
}

func TestSecretClearZeroesMemory(t *testing.T) {
	raw := []byte("sensitive")
	s := &Secret{Value: raw}

	s.Clear()

	require.Nil(t, s.Value)
	for i, c := range raw {
		assert.Zerof(t, c, "byte %d not zeroed", i)
	}
}

func TestSecretNilValue(t *testing.T) {
	s := &Secret{}
	assert.Empty(t, s.String())
	assert.Nil(t, s.Bytes())
	s.Clear()
}
