// Package market looks up quotes for publicly traded roster companies.
//
// Two providers are available: YahooProvider queries the public quote
// endpoint and AlpacaProvider uses the Alpaca market-data API when
// credentials are configured. Callers treat every failure as "quote
// unavailable"; nothing in the acquisition path depends on this package.
package market
