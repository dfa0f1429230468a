package server

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// DefaultDomain is the public domain of the site.
const DefaultDomain = "opencountrieslist.com"

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// WriteSitemap writes the sitemap of the single page site. The home page
// changes with every poll, hence the hourly frequency.
func WriteSitemap(w io.Writer, domain string, lastmod time.Time) error {
	if domain == "" {
		domain = DefaultDomain
	}
	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
		URLs: []sitemapURL{{
			Loc:        fmt.Sprintf("https://%s/", domain),
			LastMod:    lastmod.UTC().Format("2006-01-02"),
			ChangeFreq: "hourly",
			Priority:   "1.0",
		}},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(set)
}
