// Package locator maps logical page markers to physical selectors.
//
// The portal markup is the most fragile dependency of the downloader, so all
// selectors live in one versioned Table. A YAML file can override any entry
// without rebuilding.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Strategy is how a Locator's value is interpreted.
type Strategy string

const (
	ByID    Strategy = "id"
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
)

// Locator is a physical selector.
type Locator struct {
	By    Strategy `yaml:"by"`
	Value string   `yaml:"value"`
}

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}

// Marker is the logical name of something the steps look for.
type Marker string

const (
	UsernameField   Marker = "username_field"
	PasswordField   Marker = "password_field"
	SubmitButton    Marker = "submit_button"
	PostLoginMarker Marker = "post_login_marker"

	ConsentBanner Marker = "consent_banner"
	ConsentAccept Marker = "consent_accept"

	BillsContainer Marker = "bills_container"
	BillCard       Marker = "bill_card"
	PageSizeSelect Marker = "page_size_select"

	DownloadControl  Marker = "download_control"
	FormatItem       Marker = "format_item"
	AttachmentsClose Marker = "attachments_close"
)

// Markers lists every marker a Table must resolve.
var Markers = []Marker{
	UsernameField, PasswordField, SubmitButton, PostLoginMarker,
	ConsentBanner, ConsentAccept,
	BillsContainer, BillCard, PageSizeSelect,
	DownloadControl, FormatItem, AttachmentsClose,
}

// Titles holds the document title fragments used to classify pages.
// A page matches when its title contains every fragment of the list.
type Titles struct {
	Authenticated []string `yaml:"authenticated"`
	Dashboard     []string `yaml:"dashboard"`
	BillList      []string `yaml:"bill_list"`
}

// Table is the full site contract.
type Table struct {
	Version  string             `yaml:"version"`
	Elements map[Marker]Locator `yaml:"elements"`
	Titles   Titles             `yaml:"titles"`

	DashboardPath string `yaml:"dashboard_path"`
	BillListPath  string `yaml:"bill_list_path"`
	UnreadStatus  string `yaml:"unread_status"`

	PageSizeValue  string `yaml:"page_size_value"`
	PDFFormatLabel string `yaml:"pdf_format_label"`
}

// DefaultFile is the locator file looked up under the XDG config directories.
const DefaultFile = "aziendaweb-bills/locators.yaml"

// ErrUnknownMarker is returned by Validate for markers missing from a Table.
var ErrUnknownMarker = errors.New("locator table: marker not defined")

// Default returns the table matching the current AziendaOnWeb markup.
func Default() *Table {
	return &Table{
		Version: "aziendaonweb-2024.1",
		Elements: map[Marker]Locator{
			UsernameField:   {By: ByID, Value: "userName"},
			PasswordField:   {By: ByID, Value: "password"},
			SubmitButton:    {By: ByCSS, Value: ".mat-button-base"},
			PostLoginMarker: {By: ByID, Value: "documento-vendita-ricevuto"},

			ConsentBanner: {By: ByID, Value: "iubenda-cs-banner"},
			ConsentAccept: {By: ByCSS, Value: ".iubenda-cs-accept-btn"},

			BillsContainer: {By: ByID, Value: "documento-vendita-ricevuto"},
			BillCard:       {By: ByCSS, Value: "div.card"},
			PageSizeSelect: {By: ByCSS, Value: "select.seac-dx-page-selector-select"},

			DownloadControl: {By: ByCSS, Value: `a[title="Scarica PDF"]`},
			FormatItem:      {By: ByCSS, Value: "a.dropdown-item"},
			AttachmentsClose: {
				By:    ByXPath,
				Value: "//div[@class='modal-content'][div[@id='modalAllegatiContentId']]//button[@class='close']",
			},
		},
		Titles: Titles{
			Authenticated: []string{"AziendaOnWeb"},
			Dashboard:     []string{"Impresa - AziendaOnWeb"},
			BillList:      []string{"documenti", "ricevuti"},
		},
		DashboardPath:  "impresa/dashboard",
		BillListPath:   "fatturazione/documento-vendita-ricevuto",
		UnreadStatus:   "2",
		PageSizeValue:  "1000",
		PDFFormatLabel: "PDF elettronico",
	}
}

// Get returns the locator for m. Tables are validated at load time, so a
// missing marker here is a programming error.
func (t *Table) Get(m Marker) Locator {
	l, ok := t.Elements[m]
	if !ok {
		panic(fmt.Sprintf("locator table %s: no entry for %q", t.Version, m))
	}
	return l
}

// Validate checks that every marker resolves to a usable selector.
func (t *Table) Validate() error {
	var missing []string
	for _, m := range Markers {
		l, ok := t.Elements[m]
		if !ok || l.Value == "" {
			missing = append(missing, string(m))
			continue
		}
		switch l.By {
		case ByID, ByCSS, ByXPath:
		default:
			return fmt.Errorf("locator table: marker %q has unknown strategy %q", m, l.By)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %v", ErrUnknownMarker, missing)
	}
	if t.PageSizeValue == "" || t.PDFFormatLabel == "" || t.BillListPath == "" || t.DashboardPath == "" {
		return errors.New("locator table: page size, format label and page paths are required")
	}
	return nil
}

// Load reads a YAML file on top of the default table. Entries absent from
// the file keep their default value.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read locator file: %w", err)
	}

	t := Default()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse locator file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Resolve picks the table to use. An explicit path must exist. Without one,
// the XDG config directories are searched and the built-in table is the
// fallback.
func Resolve(explicit string) (*Table, string, error) {
	if explicit != "" {
		t, err := Load(explicit)
		return t, explicit, err
	}

	path, err := xdg.SearchConfigFile(filepath.FromSlash(DefaultFile))
	if err != nil {
		return Default(), "", nil
	}
	t, err := Load(path)
	return t, path, err
}
