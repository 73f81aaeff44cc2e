// Package config holds the runtime configuration of the bill downloader.
package config

import (
	"net/url"
	"strings"
	"time"
)

// Environment variable names. They match the container setup the downloader
// runs in, next to a remote Chrome node.
const (
	EnvEndpoint = "webdriverHost"
	EnvUsername = "username"
	EnvPassword = "password"
)

const (
	// DefaultBaseURL is the portal root. Every other page URL is derived from it.
	DefaultBaseURL = "https://aziendaweb.seac.it/"

	// DefaultDownloadDir is the download folder on the browser host, not on
	// the machine running this process.
	DefaultDownloadDir = "/home/seluser/to_print"

	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080

	// AppName is used for the XDG config directory.
	AppName = "aziendaweb-bills"
)

// Timeouts are the bounded waits used at each call site. Each one is a single
// polling window; nothing is retried once it elapses.
type Timeouts struct {
	Poll time.Duration

	LoginPage  time.Duration // username field after loading the start page
	LoginField time.Duration // password field and submit control, expected with the username field
	PostLogin  time.Duration // marker element shown once the login went through

	ConsentDetect  time.Duration // initial banner detection
	ConsentControl time.Duration // accept control inside the banner
	ConsentRecheck time.Duration // re-probe after the accept attempt

	BillsContainer time.Duration
	BillCard       time.Duration
	PageSize       time.Duration

	DownloadControls time.Duration
	FormatMenu       time.Duration
	AttachmentsPopup time.Duration
}

// DefaultTimeouts returns the timeouts tuned against the live portal.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Poll:             100 * time.Millisecond,
		LoginPage:        10 * time.Second,
		LoginField:       1 * time.Second,
		PostLogin:        10 * time.Second,
		ConsentDetect:    5 * time.Second,
		ConsentControl:   2 * time.Second,
		ConsentRecheck:   500 * time.Millisecond,
		BillsContainer:   10 * time.Second,
		BillCard:         5 * time.Second,
		PageSize:         10 * time.Second,
		DownloadControls: 10 * time.Second,
		FormatMenu:       1 * time.Second,
		AttachmentsPopup: 1 * time.Second,
	}
}

// each returns every timeout with its name, for validation.
func (t Timeouts) each() map[string]time.Duration {
	return map[string]time.Duration{
		"poll":              t.Poll,
		"login page":        t.LoginPage,
		"login field":       t.LoginField,
		"post login":        t.PostLogin,
		"consent detect":    t.ConsentDetect,
		"consent control":   t.ConsentControl,
		"consent recheck":   t.ConsentRecheck,
		"bills container":   t.BillsContainer,
		"bill card":         t.BillCard,
		"page size":         t.PageSize,
		"download controls": t.DownloadControls,
		"format menu":       t.FormatMenu,
		"attachments popup": t.AttachmentsPopup,
	}
}

// Config is assembled once at startup and passed down explicitly.
type Config struct {
	// Endpoint is the automation engine address (a DevTools ws:// or http:// URL).
	Endpoint string
	Username string
	Password string

	BaseURL     string
	DownloadDir string

	WindowWidth  int
	WindowHeight int

	// LocatorsFile optionally overrides the built-in locator table.
	LocatorsFile string

	Verbose   bool
	LogFormat string

	Timeouts Timeouts
}

// NewConfig returns a Config with defaults for everything except the
// three required values.
func NewConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		DownloadDir:  DefaultDownloadDir,
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
		LogFormat:    "text",
		Timeouts:     DefaultTimeouts(),
	}
}

// FromEnv fills the endpoint and the credentials from getenv.
// Values already set are kept, so flags win over the environment.
func (c *Config) FromEnv(getenv func(string) string) {
	if c.Endpoint == "" {
		c.Endpoint = strings.TrimSpace(getenv(EnvEndpoint))
	}
	if c.Username == "" {
		c.Username = getenv(EnvUsername)
	}
	if c.Password == "" {
		c.Password = getenv(EnvPassword)
	}
}

// Validate returns the first problem found.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Username == "" {
		return ErrMissingUsername
	}
	if c.Password == "" {
		return ErrMissingPassword
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}

	for _, d := range c.Timeouts.each() {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	return nil
}

// PageURL joins a portal-relative path onto BaseURL.
func (c *Config) PageURL(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
