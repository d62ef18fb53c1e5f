package explorer

import (
	"log/slog"
	"net/url"
	"strconv"

	"github.com/meigma/keyutils/hexdump"
	"github.com/meigma/keyutils/l10n"
)

// Query parameter names shared by the explorer pages and their links.
const (
	ParamKey        = "key"
	ParamHexWidth   = "hexwidth"
	ParamAutoMF     = "automf"
	ParamDeep       = "deep"
	ParamMultilevel = "ml"
	ParamMFType     = "mftype"
	ParamAction     = "action"

	checked = "checked"
)

// Manifest types understood by the site viewer.
const (
	MFTypeZIP    = "ZIPmanifest"
	MFTypeTAR    = "TARmanifest"
	MFTypeSimple = "simplemanifest"
)

// Options are the display switches of one explorer request.
type Options struct {
	// HexWidth is the number of bytes per hex dump line.
	HexWidth int

	// AutoManifest redirects manifests to the site viewer.
	AutoManifest bool

	// Deep asks the site viewer to parse manifests recursively.
	Deep bool

	// Multilevel fetches the key as splitfile metadata and shows the
	// reassembled content instead of the top level document.
	Multilevel bool
}

// DefaultOptions returns the options used when a request sets none.
func DefaultOptions() Options {
	return Options{HexWidth: hexdump.DefaultWidth}
}

// Params returns the query parameters that carry o over into links.
func (o Options) Params() url.Values {
	q := url.Values{ParamHexWidth: {strconv.Itoa(o.HexWidth)}}
	if o.AutoManifest {
		q.Set(ParamAutoMF, checked)
	}
	if o.Deep {
		q.Set(ParamDeep, checked)
	}
	if o.Multilevel {
		q.Set(ParamMultilevel, checked)
	}
	return q
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithLogger sets the logger for request diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) {
		e.logger = logger
	}
}

// WithPluginPath sets the path the explorer is mounted at. Defaults to
// DefaultPluginPath.
func WithPluginPath(path string) Option {
	return func(e *Explorer) {
		e.pluginPath = path
	}
}

// WithOpenPath sets the path of the host's content viewer used by "open"
// links. Defaults to "/".
func WithOpenPath(path string) Option {
	return func(e *Explorer) {
		e.openPath = path
	}
}

// WithDefaults sets the options used for GET parameters a request omits.
func WithDefaults(o Options) Option {
	return func(e *Explorer) {
		e.defaults = o
	}
}

// WithLocalizer sets the message catalog for page text.
func WithLocalizer(l *l10n.Localizer) Option {
	return func(e *Explorer) {
		e.localizer = l
	}
}

// WithFormPassword sets the token POST requests must carry. Defaults to a
// random token generated by New.
func WithFormPassword(password string) Option {
	return func(e *Explorer) {
		e.formPassword = password
	}
}

// WithVersion sets the version shown in the page footer.
func WithVersion(version string) Option {
	return func(e *Explorer) {
		e.version = version
	}
}
