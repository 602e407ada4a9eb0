package core

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholderMarker tags teaser entries the feed publishes before the real
// episode; they are never acquired.
const placeholderMarker = "E999"

// ParsedTitle is what the title grammar extracts from a feed entry.
type ParsedTitle struct {
	ShowName string
	Season   int
	Episode  int
	Quality  string
	IsMovie  bool
	Grammar  string
}

type titleGrammar struct {
	name  string
	re    *regexp.Regexp
	parse func(m []string) ParsedTitle
}

// Titles look like "<Russian title> (<Show Name>). <Episode title> (S02E05) [1080p]"
// or, for films, "<Russian title> (<Title>) ... (Фильм) [1080p]".
var titleGrammars = []titleGrammar{
	{
		name: "episode",
		re:   regexp.MustCompile(`^.+\((.+)\).+ \(S(\d{1,3})E(\d{1,3})\) \[(.+)\]`),
		parse: func(m []string) ParsedTitle {
			season, _ := strconv.Atoi(m[2])
			episode, _ := strconv.Atoi(m[3])
			return ParsedTitle{ShowName: m[1], Season: season, Episode: episode, Quality: "[" + m[4] + "]"}
		},
	},
	{
		name: "movie",
		re:   regexp.MustCompile(`^.+\((.+)\).+\(Фильм\) \[(.+)\]`),
		parse: func(m []string) ParsedTitle {
			return ParsedTitle{ShowName: m[1], Season: 0, Quality: "[" + m[2] + "]", IsMovie: true}
		},
	},
}

// ParseReleaseTitle runs the grammars in order and returns the first match.
// Placeholder titles never match.
func ParseReleaseTitle(title string) (ParsedTitle, bool) {
	if strings.Contains(title, placeholderMarker) {
		return ParsedTitle{}, false
	}
	for _, g := range titleGrammars {
		m := g.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		parsed := g.parse(m)
		parsed.ShowName = strings.TrimSpace(parsed.ShowName)
		parsed.Grammar = g.name
		return parsed, true
	}
	return ParsedTitle{}, false
}
