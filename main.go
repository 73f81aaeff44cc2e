// Command aziendaweb-bills downloads the unread received bills from
// AziendaOnWeb as electronic PDFs, driving a remote Chrome.
//
// Usage:
//
//	webdriverHost=ws://selenium:9222 username=... password=... aziendaweb-bills
//
// See --help for all available options.
package main

// appVersion is set at build time via -ldflags="-X main.appVersion=x.x.x"
var appVersion = "dev"

func main() {
	Execute()
}
