package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikimind/internal/common/config"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(config.DefaultLanguages())

	en, ok := r.Lookup("EN")
	require.True(t, ok)
	assert.Equal(t, "English", en.DisplayName)
	assert.Equal(t, "en-US", en.SpeechCode)
	assert.True(t, en.SupportsSpeech())

	_, ok = r.Lookup("xx")
	assert.False(t, ok)
}

func TestRegistry_SkipsInvalidRows(t *testing.T) {
	r := NewRegistry([]config.LanguageConfig{
		{DisplayName: "English", RetrievalCode: "en", SpeechCode: "en-US"},
		{DisplayName: "Nameless"},
		{DisplayName: "Duplicate", RetrievalCode: "en"},
		{RetrievalCode: "cy"},
	})

	assert.Equal(t, []string{"cy", "en"}, r.Codes())
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "English", all[0].DisplayName)
	assert.Equal(t, "cy", all[1].DisplayName)
	assert.False(t, all[1].SupportsSpeech())
}

func TestRegistry_ByDisplayName(t *testing.T) {
	r := NewRegistry(config.DefaultLanguages())

	hi, ok := r.ByDisplayName("hindi")
	require.True(t, ok)
	assert.Equal(t, "hi", hi.RetrievalCode)

	_, ok = r.ByDisplayName("Klingon")
	assert.False(t, ok)
}
