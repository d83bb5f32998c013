// Package movements groups the album tracks that make up one multi-movement work.
//
// # Stem grammar
//
// Titles are lowercased and whitespace is collapsed before parsing. A movement marker is one of
//
//	roman     i .. xxxix, followed by ".", whitespace, or the end of the title
//	arabic    1. 2. 3. ...
//	keyword   movement N | mvt N | mvt. N | mov. N   (N arabic or roman)
//	ordinal   1st movement | 2nd movement | first movement | second movement ...
//
// A title takes one of three shapes:
//
//	trailing  <stem> <sep> <marker> [movement title]   sep is one of : - – — ,
//	leading   <marker> [movement title]
//	plain     anything else
//
// For trailing titles the work stem is the text before the leftmost separator that is followed by a marker.
// Plain titles are their own stem. Leading titles carry no work identity, so they are grouped by
// their marker numbers instead: a run of I, II, III belongs together and a repeated I starts a new work.
//
// # Resolution
//
// [Resolve] extends outward from the matched track in album order while each neighbour belongs to the same work,
// stopping at the first track that does not or at the album boundary. The result is a contiguous run of one album
// in track order and is never empty.
package movements

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
)

const separators = ":-–—,"

var (
	keywordMarker = regexp.MustCompile(`^(?:movement|mvt\.?|mov\.)\s*([0-9]+|[ivx]+)\b\.?`)
	ordinalMarker = regexp.MustCompile(`^([0-9]+)(?:st|nd|rd|th)\s+movement\b`)
	wordMarker    = regexp.MustCompile(`^([a-z]+)\s+movement\b`)
	arabicMarker  = regexp.MustCompile(`^([0-9]+)\.`)
	romanMarker   = regexp.MustCompile(`^([ivx]+)(?:\.|\s|$)`)

	// a request for one movement by number
	singleMovementQuery = regexp.MustCompile(`\b(?:movement|mvt\.?|mov\.)\s*(?:[0-9]+|[ivx]+)\b|\b(?:[0-9]+(?:st|nd|rd|th)|first|second|third|fourth|fifth|sixth)\s+movement\b`)
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6,
	"seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10, "eleventh": 11, "twelfth": 12,
}

// work identifies the piece a title belongs to.
type work struct {
	stem    string
	number  int
	leading bool
}

// Stem returns the work stem of title. Titles that open with a movement marker have an empty stem.
func Stem(title string) string {
	return parseTitle(title).stem
}

func parseTitle(title string) work {
	t := shared.NormalizeText(title)

	if n, ok := parseMarker(t); ok {
		return work{number: n, leading: true}
	}

	for i, r := range t {
		if !strings.ContainsRune(separators, r) {
			continue
		}
		stem := strings.TrimSpace(t[:i])
		rest := strings.TrimSpace(t[i+len(string(r)):])
		if stem == "" {
			continue
		}
		if n, ok := parseMarker(rest); ok {
			return work{stem: stem, number: n}
		}
	}

	return work{stem: t}
}

// parseMarker reports whether s opens with a movement marker and returns its number.
func parseMarker(s string) (int, bool) {
	if m := keywordMarker.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
		return romanValue(m[1])
	}
	if m := ordinalMarker.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := wordMarker.FindStringSubmatch(s); m != nil {
		if n, ok := ordinalWords[m[1]]; ok {
			return n, true
		}
	}
	if m := arabicMarker.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := romanMarker.FindStringSubmatch(s); m != nil {
		return romanValue(m[1])
	}
	return 0, false
}

// romanValue parses canonical numerals from i to xxxix.
func romanValue(s string) (int, bool) {
	tens := strings.Count(s[:len(s)-len(strings.TrimLeft(s, "x"))], "x")
	if tens > 3 {
		return 0, false
	}

	units := map[string]int{
		"": 0, "i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
		"vi": 6, "vii": 7, "viii": 8, "ix": 9,
	}
	u, ok := units[s[tens:]]
	if !ok {
		return 0, false
	}

	n := tens*10 + u
	return n, n > 0
}

// follows reports whether next continues the work of prev when read in album order.
func follows(prev, next work) bool {
	if prev.leading || next.leading {
		return prev.leading && next.leading && next.number == prev.number+1
	}
	return prev.stem != "" && prev.stem == next.stem
}

// Resolve returns the run of albumTracks forming the same work as matched.
//
// matched is located by URI, falling back to TrackIndex when either side carries no URI.
// If it cannot be located, or the query asks for a single numbered movement, the result is just matched.
func Resolve(albumTracks []models.AlbumTrack, matched models.AlbumTrack, query string) models.MovementSet {
	single := models.MovementSet{matched}

	if singleMovementQuery.MatchString(shared.NormalizeText(query)) {
		return single
	}

	tracks := make([]models.AlbumTrack, len(albumTracks))
	copy(tracks, albumTracks)
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].TrackIndex < tracks[j].TrackIndex
	})

	pos := locate(tracks, matched)
	if pos < 0 {
		return single
	}

	works := make([]work, len(tracks))
	for i, t := range tracks {
		works[i] = parseTitle(t.Title)
	}

	start, end := pos, pos
	for start > 0 && follows(works[start-1], works[start]) {
		start--
	}
	for end < len(tracks)-1 && follows(works[end], works[end+1]) {
		end++
	}

	set := make(models.MovementSet, end-start+1)
	copy(set, tracks[start:end+1])
	return set
}

func locate(tracks []models.AlbumTrack, matched models.AlbumTrack) int {
	if matched.URI != "" {
		for i, t := range tracks {
			if t.URI == matched.URI {
				return i
			}
		}
	}
	for i, t := range tracks {
		if t.TrackIndex == matched.TrackIndex && (matched.URI == "" || t.URI == "") {
			return i
		}
	}
	return -1
}
