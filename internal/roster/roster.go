// Package roster parses the operator's list of wanted shows.
//
// One line names one show, optionally followed by "/S<n>" or "/S<n>-<m>"
// (seasons to download) and "/Y<year>" (appended to the destination dir):
//
//	Best Show Name
//	Another Show/Y2022
//	Yet Another Show/S03-04
//	Also A Show/S00-06/Y2022
package roster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	MinSeason = 0
	MaxSeason = 99
)

// ErrMalformedLine marks a roster line that carries a season or year marker
// but does not fit the grammar, or names a show that cannot be a directory.
var ErrMalformedLine = errors.New("malformed roster line")

// WatchRule is the parsed form of one roster line.
type WatchRule struct {
	ShowName       string
	DestinationDir string
	Seasons        [2]int
}

// Covers reports whether season falls within the rule's range.
func (r WatchRule) Covers(season int) bool {
	return r.Seasons[0] <= season && season <= r.Seasons[1]
}

// Roster maps lower-cased show names to their rules.
type Roster map[string]WatchRule

// Lookup finds a rule by show name, ignoring case.
func (r Roster) Lookup(showName string) (WatchRule, bool) {
	rule, ok := r[strings.ToLower(strings.TrimSpace(showName))]
	return rule, ok
}

// Names returns the show names in sorted order.
func (r Roster) Names() []string {
	names := make([]string, 0, len(r))
	for _, rule := range r {
		names = append(names, rule.ShowName)
	}
	sort.Strings(names)
	return names
}

type specKind int

const (
	noSeason specKind = iota
	singleSeason
	seasonRange
	withYear
)

// lineSpec is a roster line classified before normalization.
type lineSpec struct {
	kind   specKind
	name   string
	first  int
	second int
	year   string
}

var (
	seasonYearPattern = regexp.MustCompile(`^(.+)/[Ss](\d{1,2})(?:-(\d{1,2}))?/[Yy](\d+)$`)
	seasonPattern     = regexp.MustCompile(`^(.+)/[Ss](\d{1,2})(?:-(\d{1,2}))?$`)
	yearPattern       = regexp.MustCompile(`^(.+)/[Yy](\d+)$`)
)

func classify(line string) (lineSpec, error) {
	lower := strings.ToLower(line)
	hasSeason := strings.Contains(lower, "/s")
	hasYear := strings.Contains(lower, "/y")

	switch {
	case hasSeason && hasYear:
		m := seasonYearPattern.FindStringSubmatch(line)
		if m == nil {
			return lineSpec{}, ErrMalformedLine
		}
		spec := seasonSpec(m[1], m[2], m[3])
		spec.year = m[4]
		return spec, nil
	case hasSeason:
		m := seasonPattern.FindStringSubmatch(line)
		if m == nil {
			return lineSpec{}, ErrMalformedLine
		}
		return seasonSpec(m[1], m[2], m[3]), nil
	case hasYear:
		m := yearPattern.FindStringSubmatch(line)
		if m == nil {
			return lineSpec{}, ErrMalformedLine
		}
		return lineSpec{kind: withYear, name: m[1], year: m[2]}, nil
	default:
		return lineSpec{kind: noSeason, name: line}, nil
	}
}

func seasonSpec(name, first, second string) lineSpec {
	// Both groups are \d{1,2}, Atoi cannot fail.
	a, _ := strconv.Atoi(first)
	if second == "" {
		return lineSpec{kind: singleSeason, name: name, first: a, second: a}
	}
	b, _ := strconv.Atoi(second)
	return lineSpec{kind: seasonRange, name: name, first: a, second: b}
}

func normalize(spec lineSpec) WatchRule {
	name := strings.TrimSpace(spec.name)
	rule := WatchRule{
		ShowName:       name,
		DestinationDir: name,
		Seasons:        [2]int{MinSeason, MaxSeason},
	}
	switch spec.kind {
	case singleSeason, seasonRange:
		lo, hi := spec.first, spec.second
		if lo > hi {
			lo, hi = hi, lo
		}
		rule.Seasons = [2]int{lo, hi}
	}
	if spec.year != "" {
		rule.DestinationDir = fmt.Sprintf("%s (%s)", name, spec.year)
	}
	return rule
}

// ParseLine turns a single non-empty roster line into a WatchRule.
func ParseLine(line string) (WatchRule, error) {
	spec, err := classify(strings.TrimSpace(line))
	if err != nil {
		return WatchRule{}, err
	}
	rule := normalize(spec)
	if !validDirName(rule.ShowName) {
		return WatchRule{}, ErrMalformedLine
	}
	return rule, nil
}

// validDirName rejects show names that would not stay a single directory
// below the save path. Everything else is used verbatim.
func validDirName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// Duplicate records a show named on more than one roster line.
type Duplicate struct {
	ShowName string
	Line     int // line that won
	Previous int // line that was overridden
}

func (d Duplicate) String() string {
	return fmt.Sprintf("%q on line %d overrides line %d", d.ShowName, d.Line, d.Previous)
}

// Parse reads a roster. Blank lines and lines starting with '#' are skipped.
// When a show appears twice the later line wins.
func Parse(r io.Reader) (Roster, error) {
	roster, _, err := ParseWithDuplicates(r)
	return roster, err
}

// ParseWithDuplicates is Parse that also reports overridden lines, so callers
// can warn about them.
func ParseWithDuplicates(r io.Reader) (Roster, []Duplicate, error) {
	roster := make(Roster)
	seenAt := make(map[string]int)
	var dups []Duplicate
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := ParseLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d %q: %w", lineNo, line, err)
		}
		key := strings.ToLower(rule.ShowName)
		if prev, ok := seenAt[key]; ok {
			dups = append(dups, Duplicate{ShowName: rule.ShowName, Line: lineNo, Previous: prev})
		}
		seenAt[key] = lineNo
		roster[key] = rule
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read roster: %w", err)
	}
	return roster, dups, nil
}

// Load parses the roster file at path.
func Load(path string) (Roster, error) {
	roster, _, err := LoadWithDuplicates(path)
	return roster, err
}

func LoadWithDuplicates(path string) (Roster, []Duplicate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseWithDuplicates(f)
}
