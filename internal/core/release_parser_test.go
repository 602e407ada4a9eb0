package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReleaseTitleEpisode(t *testing.T) {
	got, ok := ParseReleaseTitle("РусНазвание (Show X) Episode (S02E05) [1080p]")
	require.True(t, ok)
	assert.Equal(t, ParsedTitle{ShowName: "Show X", Season: 2, Episode: 5, Quality: "[1080p]", Grammar: "episode"}, got)
}

func TestParseReleaseTitlePicksLastShowParens(t *testing.T) {
	got, ok := ParseReleaseTitle("Звёздный путь (дубляж) (Star Trek). Новое начало (S101E12) [MP4]")
	require.True(t, ok)
	assert.Equal(t, "Star Trek", got.ShowName)
	assert.Equal(t, 101, got.Season)
	assert.Equal(t, "[MP4]", got.Quality)
}

func TestParseReleaseTitleMovie(t *testing.T) {
	got, ok := ParseReleaseTitle("Фильм года (Movie Of The Year). Режиссёрская версия (Фильм) [1080p]")
	require.True(t, ok)
	assert.True(t, got.IsMovie)
	assert.Equal(t, "Movie Of The Year", got.ShowName)
	assert.Equal(t, 0, got.Season)
	assert.Equal(t, "movie", got.Grammar)
}

func TestParseReleaseTitleRejects(t *testing.T) {
	for _, title := range []string{
		"РусНазвание (Show X) Трейлер (S02E999) [1080p]",
		"Just some news item",
		"No Parens S01E01 [1080p]",
		"",
	} {
		t.Run(title, func(t *testing.T) {
			_, ok := ParseReleaseTitle(title)
			assert.False(t, ok)
		})
	}
}
