package scraper

import (
	"regexp"
	"strings"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/travel"
	"golang.org/x/net/html"
)

// Qualifier phrases that move a plain yes/no answer into a softer bucket.
// The *Always lists confirm the plain value.
var (
	yesSometimes = []string{"not for tourism", "entry is restricted", "no tourism", "subject to strict limitations", "purpose of travel", "only under", "very limited cases", "special permission", "but only if they meet other certain criteria", "limited circumstances"}
	yesAlways    = []string{"valid visa", "approved evisa", "with additional documentation", "subject to restrictions"}

	noRarely = []string{"limited circumstances", "few exceptions", "limited exceptions", "for exceptions", "special circumstances"}
	noAlways = []string{"nonessential travel", "residency"}

	othersNo        = []string{"us visitors are not allowed"}
	othersRarely    = []string{"very limited"}
	othersSometimes = []string{"it depends"}
	othersYes       = []string{"in most cases", "the countryyes", "some us citizens are permitted to enter"}
)

var (
	nonWordRe     = regexp.MustCompile(`[^\w ]`)
	spaceRe       = regexp.MustCompile(`\s+`)
	yesWordRe     = regexp.MustCompile(`\byes\b`)
	noWordRe      = regexp.MustCompile(`\bno\b`)
	preformatRe   = regexp.MustCompile(`[^\(\) \w,\.]`)
	sentenceEndRe = regexp.MustCompile(`[\.!\?]$`)
	dotsRe        = regexp.MustCompile(`\.+`)

	preformatWords = []struct {
		re  *regexp.Regexp
		val string
	}{
		{regexp.MustCompile(`\bYES\b`), "Yes"},
		{regexp.MustCompile(`\bNO\b`), "No"},
		{regexp.MustCompile(`\bUS\b`), "U.S."},
	}
)

// StripTags returns the text content of an HTML fragment with entities
// decoded.
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// normalizeAnswer lowercases the text of an answer and keeps only word
// characters and single spaces.
func normalizeAnswer(raw string) string {
	s := nonWordRe.ReplaceAllString(StripTags(raw), "")
	return strings.ToLower(strings.TrimSpace(spaceRe.ReplaceAllString(s, " ")))
}

// ParseAnswer classifies the answer to "Are U.S. citizens permitted to
// enter?". The answer buckets map 1:1 onto the classification enum:
// Open=yes, PartiallyOpen=sometimes, MostlyClosed=rarely, Closed=no.
func ParseAnswer(raw string) travel.Classification {
	answer := normalizeAnswer(raw)

	if yesWordRe.MatchString(answer) || strings.HasPrefix(answer, "yes") {
		if containsAny(answer, yesSometimes) {
			return travel.PartiallyOpen
		}
		if containsAny(answer, yesAlways) {
			return travel.Open
		}
		return travel.Open
	}

	if noWordRe.MatchString(answer) || strings.HasPrefix(answer, "no") {
		if containsAny(answer, noRarely) {
			return travel.MostlyClosed
		}
		if containsAny(answer, noAlways) {
			return travel.Closed
		}
		return travel.Closed
	}

	switch {
	case containsAny(answer, othersNo):
		return travel.Closed
	case containsAny(answer, othersRarely):
		return travel.MostlyClosed
	case containsAny(answer, othersSometimes):
		return travel.PartiallyOpen
	case containsAny(answer, othersYes):
		return travel.Open
	case answer == "":
		return travel.Unknown
	}

	utils.Log.Warnf("Unknown response: raw=%q, normalized=%q", raw, answer)
	return travel.Unknown
}

// CombineAnswers reduces the answers found on one page to a single
// classification. Pages often repeat the question with slightly different
// wording; agreeing or adjacent answers collapse, contradicting ones send
// the reader to the embassy page.
func CombineAnswers(answers []travel.Classification) travel.Classification {
	set := make(map[travel.Classification]struct{})
	for _, a := range answers {
		set[a] = struct{}{}
	}

	has := func(cs ...travel.Classification) bool {
		for _, c := range cs {
			if _, ok := set[c]; !ok {
				return false
			}
		}
		return true
	}

	switch {
	case len(set) == 0:
		return travel.Unknown
	case len(set) == 1:
		for c := range set {
			return c
		}
	case len(set) >= 3:
		return travel.SeeURL
	case has(travel.Open, travel.PartiallyOpen):
		return travel.Open
	case has(travel.PartiallyOpen, travel.MostlyClosed):
		return travel.MostlyClosed
	case has(travel.Closed, travel.MostlyClosed):
		return travel.Closed
	case has(travel.Closed, travel.Open):
		return travel.SeeURL
	}

	utils.Log.Warnf("Undefined answer combination: %v", answers)
	return travel.SeeURL
}

// ParseRequirement reads the answers to a yes/no sub-policy question such as
// "Are U.S. citizens required to quarantine?". Conflicting or missing
// answers are unknown.
func ParseRequirement(raws []string) travel.Requirement {
	found := make(map[travel.Requirement]struct{})
	for _, raw := range raws {
		switch ParseAnswer(raw) {
		case travel.Open, travel.PartiallyOpen:
			found[travel.Required] = struct{}{}
		case travel.Closed, travel.MostlyClosed:
			found[travel.NotRequired] = struct{}{}
		}
	}
	if len(found) != 1 {
		return travel.RequirementUnknown
	}
	for r := range found {
		return r
	}
	return travel.RequirementUnknown
}

// PreformatAnswer turns a raw answer into a short sentence for the tooltip.
func PreformatAnswer(raw string) string {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(strings.TrimSpace(StripTags(raw)), " "))
	s = preformatRe.ReplaceAllString(s, "")

	if !sentenceEndRe.MatchString(s) {
		s += "."
	}

	for _, w := range preformatWords {
		s = w.re.ReplaceAllString(s, w.val)
	}

	s = dotsRe.ReplaceAllString(s, ".")
	s = strings.TrimSpace(strings.ReplaceAll(s, " .", ""))

	if len(s) >= 2 {
		s = strings.ToUpper(s[:1]) + s[1:]
	}
	return s
}
