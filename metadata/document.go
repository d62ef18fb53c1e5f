package metadata

import (
	"fmt"

	"github.com/meigma/keyutils/key"
)

// DocumentType identifies the form of a metadata document.
type DocumentType uint8

const (
	TypeUnknown DocumentType = iota
	TypeSimpleRedirect
	TypeSimpleManifest
	TypeArchiveInternalRedirect
	TypeArchiveMetadataRedirect
	TypeArchiveManifest
	TypeMultiLevelMetadata
	TypeSymbolicShortlink
)

func (t DocumentType) String() string {
	switch t {
	case TypeSimpleRedirect:
		return "SimpleRedirect"
	case TypeSimpleManifest:
		return "SimpleManifest"
	case TypeArchiveInternalRedirect:
		return "ArchiveInternalRedirect"
	case TypeArchiveMetadataRedirect:
		return "ArchiveMetadataRedirect"
	case TypeArchiveManifest:
		return "ArchiveManifest"
	case TypeMultiLevelMetadata:
		return "MultiLevelMetadata"
	case TypeSymbolicShortlink:
		return "SymbolicShortlink"
	default:
		return "Unknown"
	}
}

// Document is the tagged variant carried by [Metadata]. The concrete types
// are [SimpleRedirect], [SimpleManifest], [ArchiveInternalRedirect],
// [ArchiveMetadataRedirect], [ArchiveManifest], [MultiLevelMetadata],
// [SymbolicShortlink] and [Unknown].
type Document interface {
	Type() DocumentType
	document()
}

// SimpleRedirect points at other content. Target is zero when the redirect
// is a splitfile, in which case the blocks are described by the metadata.
type SimpleRedirect struct {
	Target key.Key
}

// SimpleManifest maps names to keys.
type SimpleManifest struct {
	Entries []ManifestEntry
}

// ManifestEntry is one named entry of a [SimpleManifest].
type ManifestEntry struct {
	Name     string
	Target   key.Key
	MIMEType string
}

// ArchiveInternalRedirect names a file inside the enclosing archive.
type ArchiveInternalRedirect struct {
	Name string
}

// ArchiveMetadataRedirect names a metadata file inside the enclosing archive.
type ArchiveMetadataRedirect struct {
	Name string
}

// ArchiveManifest is a container archive whose content is the manifest.
type ArchiveManifest struct {
	Archive ArchiveType
}

// MultiLevelMetadata is metadata stored as a splitfile; the reassembled
// splitfile is itself metadata.
type MultiLevelMetadata struct{}

// SymbolicShortlink points at a path relative to the enclosing manifest.
type SymbolicShortlink struct {
	Target string
}

// Unknown is a document kind this package cannot interpret.
type Unknown struct {
	Kind uint8
}

func (SimpleRedirect) Type() DocumentType          { return TypeSimpleRedirect }
func (SimpleManifest) Type() DocumentType          { return TypeSimpleManifest }
func (ArchiveInternalRedirect) Type() DocumentType { return TypeArchiveInternalRedirect }
func (ArchiveMetadataRedirect) Type() DocumentType { return TypeArchiveMetadataRedirect }
func (ArchiveManifest) Type() DocumentType         { return TypeArchiveManifest }
func (MultiLevelMetadata) Type() DocumentType      { return TypeMultiLevelMetadata }
func (SymbolicShortlink) Type() DocumentType       { return TypeSymbolicShortlink }
func (Unknown) Type() DocumentType                 { return TypeUnknown }

func (SimpleRedirect) document()          {}
func (SimpleManifest) document()          {}
func (ArchiveInternalRedirect) document() {}
func (ArchiveMetadataRedirect) document() {}
func (ArchiveManifest) document()         {}
func (MultiLevelMetadata) document()      {}
func (SymbolicShortlink) document()       {}
func (Unknown) document()                 {}

// ArchiveType identifies the container format of an [ArchiveManifest].
type ArchiveType uint8

const (
	ArchiveZIP ArchiveType = iota + 1
	ArchiveTAR
)

func (a ArchiveType) String() string {
	switch a {
	case ArchiveZIP:
		return "ZIP"
	case ArchiveTAR:
		return "TAR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(a))
	}
}
