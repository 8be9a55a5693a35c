package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikimind/internal/suggest"
)

func TestReadTitles(t *testing.T) {
	input := "# capitals\nTokyo\t10\n\nTokyo Tower\t3\ntokyo\t12\nMount Fuji\n"

	ids, docs, err := readTitles(strings.NewReader(input), "EN")
	require.NoError(t, err)

	assert.Equal(t, []string{"en:tokyo", "en:tokyo tower", "en:mount fuji"}, ids)
	require.Len(t, docs, 3)
	assert.Equal(t, suggest.TitleDocument{Title: "tokyo", Language: "en", Rank: 12}, docs[0])
	assert.Equal(t, suggest.TitleDocument{Title: "Mount Fuji", Language: "en"}, docs[2])
}

func TestReadTitlesRejectsBadRank(t *testing.T) {
	_, _, err := readTitles(strings.NewReader("Tokyo\tmany\n"), "en")
	assert.ErrorContains(t, err, "line 1")

	_, _, err = readTitles(strings.NewReader("Tokyo\n"), " ")
	assert.Error(t, err)
}
