package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

func main() {
	// Usage: go run *.go -url "https://opencountrieslist.com/data.json"

	urlFlag := flag.String("url", "https://opencountrieslist.com/data.json", "Feed URL")
	cacheFlag := flag.String("cache", "", "Optional directory to cache the feed in")

	// Parse the command-line flags
	flag.Parse()

	src := &feed.HTTPSource{URL: *urlFlag, CacheDir: *cacheFlag}
	f, err := src.Load(context.Background())
	if err != nil {
		fmt.Println("Could not load feed:", err)
		return
	}

	// Rows come back in table order: most open first
	rows, errs := travel.ClassifyAll(f.Countries)
	for _, err := range errs {
		fmt.Println("Skipping:", err)
	}
	travel.SortRows(rows)

	for _, r := range rows {
		fmt.Println(r.Abbreviation, r.Name, r.OpennessLabel, r.QuarantineLabel)
	}
}
