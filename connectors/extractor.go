package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newsdesk/logger"
	"newsdesk/types"

	readability "github.com/go-shiori/go-readability"
)

const (
	defaultExtractWorkers = 5
	extractorTimeout      = 30 * time.Second
	// descriptions shorter than this are replaced by the article excerpt
	thinDescription = 200
)

// Extractor fills thin candidate descriptions from the linked page using readability.
type Extractor struct {
	workers int
	log     *logger.Logger
	fetch   func(url string, timeout time.Duration) (readability.Article, error)
}

func NewExtractor(workers int, log *logger.Logger) *Extractor {
	if workers <= 0 {
		workers = defaultExtractWorkers
	}
	return &Extractor{
		workers: workers,
		log:     log.With("component", "extractor"),
		fetch: func(url string, timeout time.Duration) (readability.Article, error) {
			return readability.FromURL(url, timeout)
		},
	}
}

// Enrich extracts content for every thin item using a worker pool. Failures leave the item unchanged.
func (e *Extractor) Enrich(ctx context.Context, items []types.RawCandidate) {
	var wg sync.WaitGroup
	jobs := make(chan *types.RawCandidate)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobs {
				if err := e.extract(item); err != nil {
					e.log.Debug("extraction failed", "worker", workerID, "url", item.URL, "error", err)
				}
			}
		}(i)
	}

	for i := range items {
		if len(items[i].Description) >= thinDescription || items[i].URL == "" {
			continue
		}
		select {
		case jobs <- &items[i]:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}

func (e *Extractor) extract(item *types.RawCandidate) error {
	article, err := e.fetch(item.URL, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}
	switch {
	case article.Excerpt != "":
		item.Description = plainText(article.Excerpt)
	case article.TextContent != "":
		item.Description = truncateWords(plainText(article.TextContent), 80)
	}
	if item.SourceName == "" {
		item.SourceName = article.SiteName
	}
	return nil
}

func truncateWords(s string, n int) string {
	words := 0
	for i, r := range s {
		if r == ' ' {
			words++
			if words == n {
				return s[:i]
			}
		}
	}
	return s
}
