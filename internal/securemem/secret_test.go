package securemem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretReveal(t *testing.T) {
	s := New("gsk_live_123")
	defer s.Destroy()

	assert.False(t, s.IsEmpty())
	assert.Equal(t, "gsk_live_123", s.Reveal())
}

func TestSecretNeverFormatsPlaintext(t *testing.T) {
	s := New("sk-ant-secret")
	defer s.Destroy()

	assert.Equal(t, "[redacted]", fmt.Sprintf("%s", s))
	assert.NotContains(t, fmt.Sprintf("%v", s), "sk-ant")
}

func TestSecretEmptyAndNil(t *testing.T) {
	var nilSecret *Secret
	assert.True(t, nilSecret.IsEmpty())
	assert.Equal(t, "", nilSecret.Reveal())
	nilSecret.Destroy()

	empty := New("")
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.String())
}

func TestSecretDestroy(t *testing.T) {
	s := New("brave-token")
	s.Destroy()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, "", s.Reveal())
	s.Destroy()
}
