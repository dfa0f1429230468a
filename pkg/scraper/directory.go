package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// embassyDomains are the registrable domains of U.S. embassy and consulate
// sites linked from the directory.
var embassyDomains = map[string]bool{
	"usembassy.gov":          true,
	"usconsulate.gov":        true,
	"usmission.gov":          true,
	"usembassy-china.org.cn": true,
}

var countryNameRe = regexp.MustCompile(`^[\p{L}\p{N}_ '\.,]+$`)

// ParseDirectory extracts the per-country embassy links from the
// COVID-19 country-specific information page.
func ParseDirectory(body string) ([]Country, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory HTML: %w", err)
	}

	var countries []Country
	seen := make(map[string]string)
	var dupErr error

	doc.Find("tr td a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		name := strings.TrimSpace(s.Text())
		if name == "" || !countryNameRe.MatchString(name) {
			return true
		}

		c, ok := countryFromLink(href, name)
		if !ok {
			return true
		}

		if prev, exists := seen[c.Name]; exists {
			dupErr = fmt.Errorf("country %q is listed twice (%s and %s)", c.Name, prev, c.URL)
			return false
		}
		seen[c.Name] = c.URL
		countries = append(countries, c)
		return true
	})

	if dupErr != nil {
		return nil, dupErr
	}
	return countries, nil
}

func countryFromLink(href, name string) (Country, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return Country{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Country{}, false
	}

	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.Domain(host)
	if err != nil || !embassyDomains[domain] {
		return Country{}, false
	}

	label := strings.SplitN(host, ".", 2)[0]
	if len(label) != 2 && label != "china" {
		return Country{}, false
	}

	return Country{
		Abbreviation: strings.ToUpper(label),
		Name:         name,
		URL:          u.String(),
		Domain:       domain,
	}, true
}
