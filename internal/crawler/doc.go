// Package crawler retrieves investor-relations seed pages and extracts
// document links from them.
//
// # Components
//
//   - Fetcher: one HTTP GET with a browser-like identity, classified as
//     usable, blocked, empty or network error
//   - ChromeRenderer: headless-browser render for pages that only show
//     content after running scripts; same result shape as Fetcher
//   - Extractor: finds document-like links in a usable page, in document
//     order, resolved against the page's final URL
//
// Neither Fetcher nor ChromeRenderer returns an error. Every failure mode
// is a model.FetchStatus, so the pipeline handles all outcomes the same way.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(client, crawler.WithUserAgent(ua))
//	result := fetcher.Fetch(ctx, "https://investors.example.com/", nil)
//	if result.Usable() {
//		links := crawler.NewExtractor().Extract(result)
//	}
//
// The crawler never follows links: each seed page is one hop.
package crawler
