package metadata

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/keyutils/key"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("metadata: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  16,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      64,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("metadata: CBOR decoder initialization failed: " + err.Error())
	}
}

// wireMetadata is the encoded form. Integer keys keep the encoding compact;
// they are part of the format and must not be renumbered.
type wireMetadata struct {
	Version            uint16         `cbor:"1,keyasint"`
	Kind               uint8          `cbor:"2,keyasint"`
	MIMEType           string         `cbor:"3,keyasint,omitempty"`
	Codec              uint8          `cbor:"4,keyasint,omitempty"`
	DecompressedLength int64          `cbor:"5,keyasint,omitempty"`
	Splitfile          *wireSplitfile `cbor:"6,keyasint,omitempty"`
	Top                *wireTop       `cbor:"7,keyasint,omitempty"`
	Compat             uint8          `cbor:"8,keyasint,omitempty"`
	Hashes             []wireHash     `cbor:"9,keyasint,omitempty"`
	Target             string         `cbor:"10,keyasint,omitempty"`
	Name               string         `cbor:"11,keyasint,omitempty"`
	Archive            uint8          `cbor:"12,keyasint,omitempty"`
	Entries            []wireEntry    `cbor:"13,keyasint,omitempty"`
}

type wireSplitfile struct {
	DataLength int64       `cbor:"1,keyasint"`
	Blocks     []wireBlock `cbor:"2,keyasint"`
	CustomKey  []byte      `cbor:"3,keyasint,omitempty"`
}

type wireBlock struct {
	Digest string `cbor:"1,keyasint"`
	Size   int64  `cbor:"2,keyasint"`
}

type wireTop struct {
	DontCompress     bool  `cbor:"1,keyasint"`
	CompressedSize   int64 `cbor:"2,keyasint"`
	DecompressedSize int64 `cbor:"3,keyasint"`
	BlocksRequired   int32 `cbor:"4,keyasint"`
	BlocksTotal      int32 `cbor:"5,keyasint"`
}

type wireHash struct {
	Type uint8  `cbor:"1,keyasint"`
	Sum  []byte `cbor:"2,keyasint"`
}

type wireEntry struct {
	Name     string `cbor:"1,keyasint"`
	Target   string `cbor:"2,keyasint"`
	MIMEType string `cbor:"3,keyasint,omitempty"`
}

// Marshal encodes md in the binary metadata format.
func Marshal(md *Metadata) ([]byte, error) {
	if md == nil || md.Document == nil {
		return nil, fmt.Errorf("metadata: nothing to encode")
	}

	w := wireMetadata{
		Version:            md.Version,
		Kind:               uint8(md.Document.Type()),
		MIMEType:           md.MIMEType,
		Codec:              uint8(md.Compression),
		DecompressedLength: md.DecompressedLength,
		Compat:             uint8(md.TopCompatibilityMode),
	}

	switch doc := md.Document.(type) {
	case SimpleRedirect:
		if !doc.Target.IsZero() {
			w.Target = doc.Target.String()
		}
	case SimpleManifest:
		w.Entries = make([]wireEntry, len(doc.Entries))
		for i, e := range doc.Entries {
			w.Entries[i] = wireEntry{Name: e.Name, Target: e.Target.String(), MIMEType: e.MIMEType}
		}
	case ArchiveInternalRedirect:
		w.Name = doc.Name
	case ArchiveMetadataRedirect:
		w.Name = doc.Name
	case ArchiveManifest:
		w.Archive = uint8(doc.Archive)
	case SymbolicShortlink:
		w.Target = doc.Target
	case Unknown:
		w.Kind = doc.Kind
	}

	if sf := md.Splitfile; sf != nil {
		ws := &wireSplitfile{
			DataLength: sf.DataLength,
			Blocks:     make([]wireBlock, len(sf.Blocks)),
			CustomKey:  sf.CustomKey,
		}
		for i, b := range sf.Blocks {
			ws.Blocks[i] = wireBlock{Digest: b.Digest.String(), Size: b.Size}
		}
		w.Splitfile = ws
	}

	if t := md.Top; t != nil {
		w.Top = &wireTop{
			DontCompress:     t.DontCompress,
			CompressedSize:   t.CompressedSize,
			DecompressedSize: t.DecompressedSize,
			BlocksRequired:   t.BlocksRequired,
			BlocksTotal:      t.BlocksTotal,
		}
	}

	for _, h := range md.Hashes {
		w.Hashes = append(w.Hashes, wireHash{Type: uint8(h.Type), Sum: h.Sum})
	}

	return encMode.Marshal(&w)
}

// Parse decodes metadata. All errors wrap ErrParse.
func Parse(data []byte) (*Metadata, error) {
	var w wireMetadata
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if w.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrParse, w.Version)
	}

	md := &Metadata{
		Version:              w.Version,
		MIMEType:             w.MIMEType,
		Compression:          Codec(w.Codec),
		DecompressedLength:   w.DecompressedLength,
		TopCompatibilityMode: CompatibilityMode(w.Compat),
	}
	if md.Compression > CodecLZ4 {
		return nil, fmt.Errorf("%w: unknown compression codec %d", ErrParse, w.Codec)
	}
	if md.DecompressedLength < 0 {
		return nil, fmt.Errorf("%w: negative decompressed length", ErrParse)
	}

	doc, err := decodeDocument(&w)
	if err != nil {
		return nil, err
	}
	md.Document = doc

	if ws := w.Splitfile; ws != nil {
		sf, err := decodeSplitfile(ws)
		if err != nil {
			return nil, err
		}
		md.Splitfile = sf
	}

	switch md.Document.(type) {
	case MultiLevelMetadata:
		if md.Splitfile == nil {
			return nil, fmt.Errorf("%w: multi-level metadata without splitfile", ErrParse)
		}
	case SimpleRedirect:
		if _, ok := md.SingleTarget(); !ok && md.Splitfile == nil {
			return nil, fmt.Errorf("%w: redirect has neither target nor splitfile", ErrParse)
		}
	}

	if wt := w.Top; wt != nil {
		md.Top = &TopBlock{
			DontCompress:     wt.DontCompress,
			CompressedSize:   wt.CompressedSize,
			DecompressedSize: wt.DecompressedSize,
			BlocksRequired:   wt.BlocksRequired,
			BlocksTotal:      wt.BlocksTotal,
		}
	}

	if len(w.Hashes) > 0 {
		md.Hashes = make([]Hash, len(w.Hashes))
		for i, h := range w.Hashes {
			md.Hashes[i] = Hash{Type: HashType(h.Type), Sum: h.Sum}
		}
	}

	return md, nil
}

func decodeDocument(w *wireMetadata) (Document, error) {
	switch DocumentType(w.Kind) {
	case TypeSimpleRedirect:
		if w.Target == "" {
			return SimpleRedirect{}, nil
		}
		target, err := key.Parse(w.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: redirect target: %v", ErrParse, err)
		}
		return SimpleRedirect{Target: target}, nil
	case TypeSimpleManifest:
		entries := make([]ManifestEntry, len(w.Entries))
		for i, e := range w.Entries {
			target, err := key.Parse(e.Target)
			if err != nil {
				return nil, fmt.Errorf("%w: manifest entry %q: %v", ErrParse, e.Name, err)
			}
			entries[i] = ManifestEntry{Name: e.Name, Target: target, MIMEType: e.MIMEType}
		}
		return SimpleManifest{Entries: entries}, nil
	case TypeArchiveInternalRedirect:
		return ArchiveInternalRedirect{Name: w.Name}, nil
	case TypeArchiveMetadataRedirect:
		return ArchiveMetadataRedirect{Name: w.Name}, nil
	case TypeArchiveManifest:
		return ArchiveManifest{Archive: ArchiveType(w.Archive)}, nil
	case TypeMultiLevelMetadata:
		return MultiLevelMetadata{}, nil
	case TypeSymbolicShortlink:
		return SymbolicShortlink{Target: w.Target}, nil
	default:
		return Unknown{Kind: w.Kind}, nil
	}
}

func decodeSplitfile(ws *wireSplitfile) (*Splitfile, error) {
	if ws.DataLength < 0 {
		return nil, fmt.Errorf("%w: negative splitfile length", ErrParse)
	}
	if len(ws.CustomKey) > 0 && len(ws.CustomKey) != key.CryptoKeySize {
		return nil, fmt.Errorf("%w: splitfile crypto key has %d bytes", ErrParse, len(ws.CustomKey))
	}

	sf := &Splitfile{
		DataLength: ws.DataLength,
		Blocks:     make([]Block, len(ws.Blocks)),
		CustomKey:  ws.CustomKey,
	}
	for i, b := range ws.Blocks {
		d, err := digest.Parse(b.Digest)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrParse, i, err)
		}
		if b.Size < 0 {
			return nil, fmt.Errorf("%w: block %d: negative size", ErrParse, i)
		}
		sf.Blocks[i] = Block{Digest: d, Size: b.Size}
	}
	return sf, nil
}
