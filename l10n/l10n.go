// Package l10n holds the translated user interface strings.
//
// Messages are keyed by their English text. Lookups for a message without a
// translation fall back to the key itself.
package l10n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	ExplorerTitle    = "Key Explorer"
	DownloadTitle    = "Key Download"
	ExploreBoxTitle  = "Explore a key"
	ExploreHelp      = "Display the top level chunk as hexprint or list the content of a manifest"
	KeyLabel         = "Key to explore:"
	ExploreButton    = "Explore!"
	AutoManifest     = "auto open as manifest if possible"
	DeepLabel        = "parse manifest recursive (include multilevel metadata/subcontainers)"
	MultilevelLabel  = "explore multilevel metadata"
	HexWidthLabel    = "Hex display columns:"
	MetadataBoxTitle = "Decomposed metadata"
	OptionsLabel     = "Options:"
	ErrorTitle       = "Error"
	RetryLink        = "Retry"
	Footer           = "keyutils %s"
)

var german = map[string]string{
	ExplorerTitle:    "Schlüssel-Explorer",
	DownloadTitle:    "Schlüssel herunterladen",
	ExploreBoxTitle:  "Einen Schlüssel untersuchen",
	ExploreHelp:      "Zeigt den obersten Block als Hexdump oder listet den Inhalt eines Manifests",
	KeyLabel:         "Zu untersuchender Schlüssel:",
	ExploreButton:    "Untersuchen!",
	AutoManifest:     "wenn möglich automatisch als Manifest öffnen",
	DeepLabel:        "Manifest rekursiv auswerten (mehrstufige Metadaten und Container einschließen)",
	MultilevelLabel:  "mehrstufige Metadaten untersuchen",
	HexWidthLabel:    "Hex-Spalten:",
	MetadataBoxTitle: "Zerlegte Metadaten",
	OptionsLabel:     "Optionen:",
	ErrorTitle:       "Fehler",
	RetryLink:        "Erneut versuchen",
	Footer:           "keyutils %s",
}

// Supported lists the available languages; the first is the fallback.
var Supported = []language.Tag{language.English, language.German}

// Localizer picks a printer for a request's preferred languages.
type Localizer struct {
	catalog catalog.Catalog
	matcher language.Matcher
}

// New builds the message catalog.
func New() *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range german {
		_ = b.SetString(language.German, key, text) //nolint:errcheck // only fails for malformed tags
	}
	return &Localizer{
		catalog: b,
		matcher: language.NewMatcher(Supported),
	}
}

// Printer formats messages in one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// For returns the printer best matching an Accept-Language header value.
// Unparseable or empty values select English.
func (l *Localizer) For(acceptLanguage string) *Printer {
	tag := Supported[0]
	if prefs, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(prefs) > 0 {
		_, idx, conf := l.matcher.Match(prefs...)
		if conf != language.No {
			tag = Supported[idx]
		}
	}
	return l.Printer(tag)
}

// Printer returns the printer for tag.
func (l *Localizer) Printer(tag language.Tag) *Printer {
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(l.catalog))}
}

// T returns the message for key, formatted with args.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Lang returns the BCP 47 tag of the printer's language.
func (p *Printer) Lang() string {
	return p.tag.String()
}
