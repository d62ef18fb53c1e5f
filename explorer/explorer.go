// Package explorer renders the key explorer and serves the download page.
//
// The explorer fetches the top level layer of a key, shows it as a hex dump
// and, for metadata, decomposes it with package summary. Output goes to a
// page.Sink, so the rendering can be tested without HTTP.
package explorer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/meigma/keyutils/hexdump"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/l10n"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/page"
	"github.com/meigma/keyutils/store"
	"github.com/meigma/keyutils/summary"
)

// DefaultPluginPath is the default mount path of the explorer.
const DefaultPluginPath = "/keyutils"

const nbsp = "\u00a0"

// Fetcher is the subset of *store.Store the explorer uses.
type Fetcher interface {
	Get(ctx context.Context, k key.Key) (*store.GetResult, error)
	SimpleManifestGet(ctx context.Context, k key.Key) (*metadata.Metadata, error)
	SplitGet(ctx context.Context, k key.Key, md *metadata.Metadata) ([]byte, error)
	Unroll(ctx context.Context, k key.Key, md *metadata.Metadata) ([]byte, error)
}

var _ Fetcher = (*store.Store)(nil)

// Explorer renders explorer pages for keys fetched through a Fetcher.
type Explorer struct {
	fetcher      Fetcher
	logger       *slog.Logger
	localizer    *l10n.Localizer
	pluginPath   string
	openPath     string
	formPassword string
	version      string
	defaults     Options
}

// New creates an Explorer.
func New(fetcher Fetcher, opts ...Option) (*Explorer, error) {
	if fetcher == nil {
		return nil, errors.New("explorer: fetcher is nil")
	}
	e := &Explorer{
		fetcher:    fetcher,
		pluginPath: DefaultPluginPath,
		openPath:   "/",
		defaults:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pluginPath = strings.TrimSuffix(e.pluginPath, "/")
	if e.pluginPath != "" && !strings.HasPrefix(e.pluginPath, "/") {
		return nil, fmt.Errorf("explorer: plugin path %q must start with /", e.pluginPath)
	}
	if _, err := hexdump.ValidateWidth(e.defaults.HexWidth); err != nil {
		return nil, fmt.Errorf("explorer: default hex width %d: %w", e.defaults.HexWidth, err)
	}
	if e.localizer == nil {
		e.localizer = l10n.New()
	}
	if e.formPassword == "" {
		e.formPassword = rand.Text()
	}
	return e, nil
}

// PluginPath returns the path the explorer is mounted at.
func (e *Explorer) PluginPath() string {
	return e.pluginPath
}

// FormPassword returns the token POST requests must carry.
func (e *Explorer) FormPassword() string {
	return e.formPassword
}

// Request is one explorer page request.
type Request struct {
	// Key is the key text as entered. Blank shows only the form.
	Key string

	Options Options

	// Errors are reported before any fetch errors, e.g. parameter
	// validation messages.
	Errors []string

	// Printer localizes page text. Defaults to English.
	Printer *l10n.Printer
}

// fetched is the top level content shown for a key.
type fetched struct {
	data     []byte
	metadata bool
}

// Explore fetches req.Key and writes the explorer page to sink. Fetch and
// parse failures are reported to the sink, never returned. An out of range
// hex width is reported and replaced by hexdump.DefaultWidth.
func (e *Explorer) Explore(ctx context.Context, sink page.Sink, req Request) {
	p := req.Printer
	if p == nil {
		p = e.localizer.For("")
	}
	opts := req.Options
	errs := append([]string(nil), req.Errors...)
	if width, err := hexdump.ValidateWidth(opts.HexWidth); err != nil {
		errs = append(errs, err.Error())
		opts.HexWidth = width
	}

	var (
		k      key.Key
		parsed bool
		res    *fetched
	)
	if text := strings.TrimSpace(req.Key); text != "" {
		var err error
		k, err = key.Parse(text)
		if err != nil {
			errs = append(errs, "MalformedURL: "+req.Key)
		} else {
			parsed = true
			res, err = e.fetch(ctx, k, opts.Multilevel)
			if err != nil {
				e.log().Debug("explore fetch failed", slog.String("key", k.String()), slog.Any("error", err))
				errs = append(errs, describe(err))
			}
		}
	}

	keyText := ""
	if parsed {
		keyText = k.String()
	}
	uriBox := e.uriBox(p, keyText, opts)

	if len(errs) > 0 {
		retry := ""
		if parsed {
			retry = e.explorerURL(k.String(), opts)
		}
		sink.ReportErrors(errs, retry)
		errs = nil
	}
	sink.Emit(uriBox)

	if res == nil {
		return
	}

	var md *metadata.Metadata
	if res.metadata {
		var err error
		md, err = metadata.Parse(res.data)
		if err != nil {
			errs = append(errs, "Metadata parse error: "+err.Error())
		}
	}
	if md != nil && opts.AutoManifest {
		if archive, ok := md.ArchiveType(); ok {
			switch archive {
			case metadata.ArchiveTAR:
				sink.Redirect(e.siteURL(MFTypeTAR, k.String(), opts))
				return
			case metadata.ArchiveZIP:
				sink.Redirect(e.siteURL(MFTypeZIP, k.String(), opts))
				return
			default:
				errs = append(errs, "Unknown Archive Type: "+archive.String())
			}
		}
		if md.Type() == metadata.TypeSimpleManifest {
			sink.Redirect(e.siteURL(MFTypeSimple, k.String(), opts))
			return
		}
	}

	title := "Key: " + k.String()
	if res.metadata {
		title += nbsp + "(MetaData)"
	}
	box, content := page.Infobox("infobox-normal", title)
	page.Append(content, page.Pre(hexdump.Render(res.data, opts.HexWidth)))
	sink.Emit(box)

	if md != nil {
		sink.Emit(e.metadataBox(p, md, k, opts))
	}
	sink.ReportErrors(errs, "")
}

func (e *Explorer) fetch(ctx context.Context, k key.Key, multilevel bool) (*fetched, error) {
	if multilevel {
		md, err := e.fetcher.SimpleManifestGet(ctx, k)
		if err != nil {
			return nil, err
		}
		data, err := e.fetcher.SplitGet(ctx, k, md)
		if err != nil {
			return nil, err
		}
		return &fetched{data: data, metadata: true}, nil
	}
	res, err := e.fetcher.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return &fetched{data: res.Data, metadata: res.Metadata}, nil
}

// describe turns a fetch failure into the text shown to the user.
func describe(err error) string {
	var fe *store.FetchError
	switch {
	case errors.As(err, &fe) && fe.Mode == store.ModeInvalidMetadata:
		return "Metadata Parse Error: " + causeText(fe)
	case errors.As(err, &fe):
		return fmt.Sprintf("Get failed (%s): %s", fe.Mode, causeText(fe))
	case errors.Is(err, metadata.ErrParse):
		return "Metadata Parse Error: " + err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "IO Error: " + err.Error()
	default:
		return "Internal Error: " + err.Error()
	}
}

func causeText(fe *store.FetchError) string {
	if fe.Err == nil {
		return fe.Mode.String()
	}
	return fe.Err.Error()
}

func (e *Explorer) uriBox(p *l10n.Printer, keyText string, opts Options) *html.Node {
	box, content := page.Infobox("infobox-normal", p.T(l10n.ExploreBoxTitle))
	page.Append(content, page.Text(p.T(l10n.ExploreHelp)))

	form := page.Form(e.pluginPath+"/", "uriForm", e.formPassword)
	page.Append(form,
		page.Text(p.T(l10n.KeyLabel)+nbsp+" "),
		page.Input("text", ParamKey, keyText, "size", "70"),
		page.Text(nbsp),
		page.Input("submit", "debug", p.T(l10n.ExploreButton)),
		page.Br(),
		page.Checkbox(ParamAutoMF, opts.AutoManifest),
		page.Text(nbsp+p.T(l10n.AutoManifest)+nbsp),
		page.Checkbox(ParamDeep, opts.Deep),
		page.Text(nbsp+p.T(l10n.DeepLabel)+nbsp),
		page.Checkbox(ParamMultilevel, opts.Multilevel),
		page.Text(nbsp+p.T(l10n.MultilevelLabel)+nbsp+nbsp),
		page.Text(p.T(l10n.HexWidthLabel)+nbsp),
		page.Input("text", ParamHexWidth, strconv.Itoa(opts.HexWidth), "size", "3"),
	)
	page.Append(content, form)
	return box
}

func (e *Explorer) metadataBox(p *l10n.Printer, md *metadata.Metadata, k key.Key, opts Options) *html.Node {
	s := summary.Summarize(md, summary.Context{
		Key:        k.String(),
		Params:     opts.Params(),
		Multilevel: opts.Multilevel,
		PluginPath: e.pluginPath,
		OpenPath:   e.openPath,
	})

	box, content := page.Infobox("infobox-normal", p.T(l10n.MetadataBoxTitle))
	page.Lines(content, s.Lines...)
	page.Lines(content, p.T(l10n.OptionsLabel))
	for _, row := range s.Options {
		if row.Text != "" {
			page.Append(content, page.Text(row.Text))
		}
		for i, l := range row.Links {
			if row.Text != "" || i > 0 {
				page.Append(content, page.Text(nbsp))
			}
			page.Append(content, page.Link(l.Href, l.Text))
		}
		page.Append(content, page.Br())
	}
	return box
}

// explorerURL links back to the explorer for keyText with opts.
func (e *Explorer) explorerURL(keyText string, opts Options) string {
	q := opts.Params()
	q.Set(ParamKey, keyText)
	return e.pluginPath + "/?" + q.Encode()
}

// siteURL links to the site viewer for a manifest of type mftype.
func (e *Explorer) siteURL(mftype, keyText string, opts Options) string {
	q := opts.Params()
	q.Set(ParamKey, keyText)
	q.Set(ParamMFType, mftype)
	return e.pluginPath + "/Site/?" + q.Encode()
}

func (e *Explorer) footer(p *l10n.Printer) *html.Node {
	version := e.version
	if version == "" {
		version = "dev"
	}
	return page.Append(page.Element("div", "id", "footer"), page.Text(p.T(l10n.Footer, version)))
}

func (e *Explorer) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.New(slog.DiscardHandler)
}
