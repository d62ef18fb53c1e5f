package metadata

// Media types for content stored under keys.
const (
	// ArtifactType identifies the OCI manifest behind every key.
	ArtifactType = "application/vnd.keyutils.key.v1"

	// MediaTypeMetadata is the layer media type of encoded metadata.
	MediaTypeMetadata = "application/vnd.keyutils.metadata.v1+cbor"

	// MediaTypeData is the layer media type of plain data.
	MediaTypeData = "application/vnd.keyutils.data.v1"

	// MediaTypeBlock is the media type of a splitfile block blob.
	MediaTypeBlock = "application/vnd.keyutils.block.v1"
)
