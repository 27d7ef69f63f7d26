package config

// FeedPresets maps friendly keys to feed connector configurations
var FeedPresets = map[string]FeedConfig{
	"cna": {
		Name:     "Channel News Asia",
		URL:      "https://www.channelnewsasia.com/api/v1/rss-outbound-feed?_format=xml",
		Kind:     "rss",
		Region:   "singapore",
		Category: "general",
	},
	"st": {
		Name:     "Straits Times",
		URL:      "https://www.straitstimes.com/news/singapore/rss.xml",
		Kind:     "rss",
		Region:   "singapore",
		Category: "general",
	},
	"tr": {
		Name:     "Technology Review",
		URL:      "https://www.technologyreview.com/feed/",
		Kind:     "rss",
		Category: "technology",
		Extract:  true,
	},
	"mom": {
		Name:     "Ministry of Manpower press releases",
		URL:      "https://www.mom.gov.sg/rss/press-releases",
		Kind:     "government",
		Region:   "singapore",
		Category: "policy",
	},
	"who": {
		Name:     "World Health Organization news",
		URL:      "https://www.who.int/rss-feeds/news-english.xml",
		Kind:     "government",
		Category: "health",
	},
}

// ResolveFeed resolves a preset key to its configuration.
// Anything else is treated as a direct RSS URL.
func ResolveFeed(input string) FeedConfig {
	if feed, ok := FeedPresets[input]; ok {
		return feed
	}
	return FeedConfig{Name: input, URL: input, Kind: "rss"}
}

func defaultFeeds() []FeedConfig {
	keys := []string{"cna", "st", "tr", "mom", "who"}
	feeds := make([]FeedConfig, 0, len(keys))
	for _, k := range keys {
		feeds = append(feeds, FeedPresets[k])
	}
	return feeds
}
