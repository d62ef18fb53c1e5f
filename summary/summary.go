// Package summary decomposes decoded metadata into display lines and
// navigation links. It performs no decoding or I/O.
package summary

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/meigma/keyutils/metadata"
)

const nbsp = "\u00a0"

// Labels with fixed text.
const (
	UnknownDocumentType = "Unknown document type"
	NoFlagSet           = "No flag set"
	Uncompressed        = "Uncompressed"
)

// Context carries request state the links depend on.
type Context struct {
	// Key is the text form of the key the metadata was fetched from.
	Key string

	// Params are carried over into explorer links (hexwidth, automf, ...).
	Params url.Values

	// Multilevel reports whether the page was requested in multilevel mode.
	Multilevel bool

	// PluginPath is the path the explorer is mounted at, e.g. "/keyutils".
	PluginPath string

	// OpenPath is the path of the host's plain content viewer. Defaults to "/".
	OpenPath string
}

// Link is a navigation link.
type Link struct {
	Text string
	Href string
}

// Row is one line of navigation: optional leading text and links.
type Row struct {
	Text  string
	Links []Link
}

// Summary is the decomposed form of one metadata document.
type Summary struct {
	Lines   []string
	Options []Row
}

// Summarize describes md. Missing fields omit their lines; it never fails.
func Summarize(md *metadata.Metadata, ctx Context) Summary {
	var s Summary
	add := func(format string, args ...any) {
		s.Lines = append(s.Lines, fmt.Sprintf(format, args...))
	}

	add("Metadata version %d", md.Version)
	add("Document type:%s%s", nbsp, documentLabel(md))

	if md.MIMEType != "" {
		add("MIME Type: %s", md.MIMEType)
	}
	add("Flags:%s%s", nbsp, flags(md))

	if md.IsCompressed() {
		add("Decompressed size: %d bytes.", md.DecompressedLength)
	} else {
		add(Uncompressed)
	}

	if md.TopCompatibilityMode != metadata.CompatUnknown {
		add("Compatibility mode: %s", md.TopCompatibilityMode)
	}

	if top := md.Top; top != nil {
		add("Top Block Data:")
		add("%[1]s%[1]sDontCompress: %[2]s", nbsp, strconv.FormatBool(top.DontCompress))
		add("%[1]s%[1]sCompressed size: %[2]d bytes.", nbsp, top.CompressedSize)
		add("%[1]s%[1]sDecompressed Size: %[2]d bytes.", nbsp, top.DecompressedSize)
		add("%[1]s%[1]sBlocks: %[2]d required, %[3]d total.", nbsp, top.BlocksRequired, top.BlocksTotal)
	}

	if len(md.Hashes) > 0 {
		add("Hashes:")
		for _, h := range md.Hashes {
			add("%[1]s%[1]s%[2]s: %[3]s", nbsp, h.Type, h.Hex())
		}
	}

	if sf := md.Splitfile; sf != nil {
		add("Splitfile size%[1]s=%[1]s%[2]d bytes.", nbsp, sf.DataLength)
		if len(sf.CustomKey) > 0 {
			add("Splitfile CryptoKey%[1]s=%[1]s%[2]s", nbsp, hex.EncodeToString(sf.CustomKey))
		}
	} else if target, ok := md.SingleTarget(); ok && md.Version > 0 && len(target.CryptoKey) > 0 {
		// A derivation failure means no default key; the warning is shown.
		if derived, err := md.CryptoKey(); err != nil || !bytes.Equal(derived, target.CryptoKey) {
			add("Splitfile CryptoKey (synthesized/guessed)%[1]s=%[1]s%[2]s", nbsp, hex.EncodeToString(target.CryptoKey))
		}
	}

	s.Options = options(md, ctx)
	return s
}

func documentLabel(md *metadata.Metadata) string {
	switch md.Document.(type) {
	case metadata.SimpleRedirect:
		return "SimpleRedirect"
	case metadata.SimpleManifest:
		return "SimpleManifest"
	case metadata.ArchiveInternalRedirect:
		return "ArchiveInternalRedirect"
	case metadata.ArchiveMetadataRedirect:
		return "ArchiveMetadataRedirect"
	case metadata.ArchiveManifest:
		return "ArchiveManifest"
	case metadata.MultiLevelMetadata:
		return "MultiLevelMetadata"
	case metadata.SymbolicShortlink:
		return "SymbolicShortlink"
	default:
		return UnknownDocumentType
	}
}

func flags(md *metadata.Metadata) string {
	var set []string
	if md.IsSplitfile() {
		set = append(set, "SplitFile")
	}
	if md.IsCompressed() {
		set = append(set, "Compressed ("+md.Compression.String()+")")
	}
	if md.HasTopData() {
		set = append(set, "HasTopData")
	}
	if len(set) == 0 {
		return NoFlagSet
	}
	return strings.Join(set, nbsp)
}

func options(md *metadata.Metadata, ctx Context) []Row {
	var rows []Row
	single := func(text, href string) {
		rows = append(rows, Row{Links: []Link{{Text: text, Href: href}}})
	}

	switch doc := md.Document.(type) {
	case metadata.SimpleManifest:
		single("reopen as manifest", ctx.site("simplemanifest"))
	case metadata.ArchiveManifest:
		single("reopen as manifest", ctx.site(doc.Archive.String()+"manifest"))
	case metadata.MultiLevelMetadata:
		// In multilevel mode Params already carry ml.
		q := ctx.query(ctx.Key)
		if !ctx.Multilevel {
			q.Set("ml", "checked")
		}
		single("explore multilevel", ctx.PluginPath+"/?"+q.Encode())
	}

	target, ok := md.SingleTarget()
	if ok {
		ts := target.String()
		rows = append(rows, Row{Text: ts, Links: []Link{
			{Text: "open", Href: ctx.open(ts)},
			{Text: "explore", Href: ctx.PluginPath + "/?" + ctx.query(ts).Encode()},
		}})
	} else {
		single("reopen normal", ctx.open(ctx.Key))
	}

	if !ok && md.IsSplitfile() {
		q := url.Values{"key": {ctx.Key}}
		single("reopen as splitfile", ctx.PluginPath+"/Split?"+q.Encode())
		q.Set("action", "splitdownload")
		single("split-download", ctx.PluginPath+"/Download?"+q.Encode())
	}
	return rows
}

// query returns the carried-over parameters with key set to k.
func (c Context) query(k string) url.Values {
	q := url.Values{}
	for name, vs := range c.Params {
		q[name] = append([]string(nil), vs...)
	}
	q.Set("key", k)
	return q
}

func (c Context) site(mftype string) string {
	q := c.query(c.Key)
	q.Set("mftype", mftype)
	return c.PluginPath + "/Site/?" + q.Encode()
}

func (c Context) open(k string) string {
	base := c.OpenPath
	if base == "" {
		base = "/"
	}
	return base + "?" + url.Values{"key": {k}}.Encode()
}
