package explorer

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/meigma/keyutils/hexdump"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/l10n"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/page"
)

const (
	// maxFormMemory bounds the multipart form held in memory.
	maxFormMemory = 1 << 20

	// maxKeyLength bounds the key text read from a form.
	maxKeyLength = 1024

	// ActionSplitDownload is the download action returning a key's content.
	ActionSplitDownload = "splitdownload"
)

// Handler returns the explorer page handler. It answers GET and POST on
// the plugin root; other paths below the plugin path get 404.
func (e *Explorer) Handler() http.Handler {
	return http.HandlerFunc(e.serveExplorer)
}

// DownloadHandler returns the handler for <plugin>/Download.
func (e *Explorer) DownloadHandler() http.Handler {
	return http.HandlerFunc(e.serveDownload)
}

func (e *Explorer) serveExplorer(w http.ResponseWriter, r *http.Request) {
	if rel := strings.TrimPrefix(r.URL.Path, e.pluginPath); rel != "/" && rel != "" {
		e.notFound(w, r)
		return
	}

	var req Request
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		var redirect string
		req, redirect = e.parseGet(r)
		if redirect != "" {
			http.Redirect(w, r, redirect, http.StatusFound)
			return
		}
	case http.MethodPost:
		req = e.parsePost(r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	p := e.localizer.For(r.Header.Get("Accept-Language"))
	req.Printer = p
	doc := e.newDocument(p, p.T(l10n.ExplorerTitle))
	e.Explore(r.Context(), doc, req)

	if location, ok := doc.Redirected(); ok {
		http.Redirect(w, r, location, http.StatusFound)
		return
	}
	e.writePage(w, http.StatusOK, doc)
}

// parseGet reads the explorer parameters from the query. Parameters that
// are absent take the configured defaults. A set mftype yields a redirect
// to the site viewer.
func (e *Explorer) parseGet(r *http.Request) (Request, string) {
	q := r.URL.Query()
	opts := Options{
		HexWidth:     e.defaults.HexWidth,
		AutoManifest: flagParam(q.Has(ParamAutoMF), q.Get(ParamAutoMF), e.defaults.AutoManifest),
		Deep:         flagParam(q.Has(ParamDeep), q.Get(ParamDeep), e.defaults.Deep),
		Multilevel:   flagParam(q.Has(ParamMultilevel), q.Get(ParamMultilevel), e.defaults.Multilevel),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get(ParamHexWidth))); err == nil {
		opts.HexWidth = n
	}

	req := Request{Options: opts}
	if !q.Has(ParamKey) {
		return req, ""
	}
	req.Key = q.Get(ParamKey)
	switch mftype := q.Get(ParamMFType); mftype {
	case MFTypeZIP, MFTypeTAR, MFTypeSimple:
		return req, e.siteURL(mftype, req.Key, opts)
	}
	return req, ""
}

// parsePost reads the explorer form. Unlike GET, absent fields are false
// and the hex width defaults to hexdump.DefaultWidth.
func (e *Explorer) parsePost(r *http.Request) Request {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		e.log().Debug("parse form", slog.Any("error", err))
	}

	if !e.checkFormPassword(r.PostFormValue(page.FormPasswordField)) {
		return Request{
			Options: Options{HexWidth: hexdump.DefaultWidth},
			Errors:  []string{"Invalid form password"},
		}
	}

	opts := Options{
		HexWidth:     hexdump.DefaultWidth,
		AutoManifest: r.PostFormValue(ParamAutoMF) != "",
		Deep:         r.PostFormValue(ParamDeep) != "",
		Multilevel:   r.PostFormValue(ParamMultilevel) != "",
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(ParamHexWidth))); err == nil {
		opts.HexWidth = n
	}

	return Request{Key: truncateKey(r.PostFormValue(ParamKey)), Options: opts}
}

// truncateKey cuts k to at most maxKeyLength bytes without splitting a
// UTF-8 sequence.
func truncateKey(k string) string {
	if len(k) <= maxKeyLength {
		return k
	}
	n := maxKeyLength
	for n > 0 && !utf8.RuneStart(k[n]) {
		n--
	}
	return k[:n]
}

func (e *Explorer) checkFormPassword(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(e.formPassword)) == 1
}

func (e *Explorer) serveDownload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != e.pluginPath+"/Download" {
		e.notFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	keyText := strings.TrimSpace(q.Get(ParamKey))
	action := strings.TrimSpace(q.Get(ParamAction))

	var errs []string
	if action == "" {
		errs = append(errs, "Parameter 'action' missing.")
	}
	if keyText == "" {
		errs = append(errs, "Parameter 'key' missing.")
	}
	if len(errs) == 0 {
		if action != ActionSplitDownload {
			errs = append(errs, "Did not understand action='"+action+"'.")
		} else {
			data, err := e.download(r, keyText)
			if err == nil {
				w.Header().Set("Content-Disposition", `attachment; filename="split-download"`)
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Header().Set("Content-Length", strconv.Itoa(len(data)))
				w.WriteHeader(http.StatusOK)
				if r.Method == http.MethodGet {
					if _, err := w.Write(data); err != nil {
						e.log().Debug("write download", slog.Any("error", err))
					}
				}
				return
			}
			e.log().Warn("download failed", slog.String("key", keyText), slog.Any("error", err))
			errs = append(errs, err.Error())
		}
	}

	p := e.localizer.For(r.Header.Get("Accept-Language"))
	doc := e.newDocument(p, p.T(l10n.DownloadTitle))
	doc.ReportErrors(errs, "")
	e.writePage(w, http.StatusNotImplemented, doc)
}

// download returns the content of a key, following metadata to the data.
func (e *Explorer) download(r *http.Request, keyText string) ([]byte, error) {
	k, err := key.Parse(keyText)
	if err != nil {
		return nil, err
	}
	res, err := e.fetcher.Get(r.Context(), k)
	if err != nil {
		return nil, err
	}
	if !res.Metadata {
		return res.Data, nil
	}
	md, err := metadata.Parse(res.Data)
	if err != nil {
		return nil, err
	}
	return e.fetcher.Unroll(r.Context(), k, md)
}

func (e *Explorer) notFound(w http.ResponseWriter, r *http.Request) {
	doc := page.New("Not found")
	doc.Emit(page.Append(page.Element("p"), page.Text("the path '"+r.URL.RequestURI()+"' was not found")))
	e.writePage(w, http.StatusNotFound, doc)
}

func (e *Explorer) newDocument(p *l10n.Printer, title string) *page.Document {
	return page.New(title,
		page.WithLang(p.Lang()),
		page.WithErrorLabels(p.T(l10n.ErrorTitle), p.T(l10n.RetryLink)),
		page.WithFooter(e.footer(p)),
	)
}

func (e *Explorer) writePage(w http.ResponseWriter, status int, doc *page.Document) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := doc.Render(w); err != nil {
		e.log().Debug("render page", slog.String("title", doc.Title()), slog.Any("error", err))
	}
}

// flagParam returns whether a checkbox parameter is on: set and non-empty
// when present in the request, def otherwise.
func flagParam(present bool, value string, def bool) bool {
	if present {
		return value != ""
	}
	return def
}
