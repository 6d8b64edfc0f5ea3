// Package main provides the entry point for the irharvest CLI.
//
// irharvest downloads investor-relations documents (filings, press
// releases, quarterly reports) published by a roster of fintech companies
// and keeps them in one directory per company.
//
// Usage:
//
//	irharvest init
//	irharvest run [--every 24h]
//	irharvest report [company]
//	irharvest serve
//
// See --help for all available options.
package main

// main is the entry point for irharvest.
func main() {
	Execute()
}
