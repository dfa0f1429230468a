package scraper

import (
	"regexp"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// Questions as they appear on embassy COVID-19 pages. The answer is the rest
// of the line after the question.
var (
	entryQuestionRe      = regexp.MustCompile(`(?im)((?:Are )?U\.S\. citizens permitted to enter\??)(.*)$`)
	testQuestionRe       = regexp.MustCompile(`(?im)(COVID-19 test[^?\n]*required[^?\n]*\?)(.*)$`)
	quarantineQuestionRe = regexp.MustCompile(`(?im)((?:Are )?U\.S\. citizens required to quarantine\??)(.*)$`)
)

func findAnswers(re *regexp.Regexp, body string) []string {
	var answers []string
	for _, m := range re.FindAllStringSubmatch(body, -1) {
		answers = append(answers, m[2])
	}
	return answers
}

// ParseCountryPage reads the entry, test and quarantine answers from an
// embassy page. Pages that never ask the entry question produce an Unknown
// record.
func ParseCountryPage(body string, c Country) travel.CountryRecord {
	rec := travel.CountryRecord{
		Abbreviation: c.Abbreviation,
		Name:         c.Name,
		URL:          c.URL,
	}

	entry := findAnswers(entryQuestionRe, body)
	if len(entry) == 0 {
		utils.Log.Debugf("No entry question found for %s (%s)", c.Name, c.URL)
		return rec
	}

	statuses := make([]travel.Classification, 0, len(entry))
	notes := make([]string, 0, len(entry))
	for _, a := range entry {
		statuses = append(statuses, ParseAnswer(a))
		notes = append(notes, PreformatAnswer(a))
	}

	rec.Classification = CombineAnswers(statuses)
	rec.Preformatted = utils.DedupeStrings(notes)
	rec.TestRequired = ParseRequirement(findAnswers(testQuestionRe, body))
	rec.QuarantineRequired = ParseRequirement(findAnswers(quarantineQuestionRe, body))
	return rec
}
