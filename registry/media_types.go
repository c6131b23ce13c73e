package registry

import fastdb "github.com/meigma/fastdb/core"

// Media types for databases in OCI registries.
const (
	// ArtifactType identifies fastdb databases as an OCI 1.1 artifact type.
	ArtifactType = "application/vnd.fastdb.v1"

	// MediaTypeDatabase is the layer media type of an uncompressed database.
	MediaTypeDatabase = "application/vnd.fastdb.database.v1"

	// MediaTypeDatabaseZstd is the layer media type of a zstd framed database.
	MediaTypeDatabaseZstd = MediaTypeDatabase + "+zstd"

	// MediaTypeDatabaseLZ4 is the layer media type of an lz4 framed database.
	MediaTypeDatabaseLZ4 = MediaTypeDatabase + "+lz4"
)

// Manifest annotations written by Push.
const (
	// AnnotationLayerCount records the number of layers in the database.
	AnnotationLayerCount = "dev.fastdb.layers"
)

// mediaTypeFor returns the layer media type for stored database bytes.
func mediaTypeFor(stored []byte) string {
	switch fastdb.DetectCompression(stored) {
	case fastdb.CompressionZstd:
		return MediaTypeDatabaseZstd
	case fastdb.CompressionLZ4:
		return MediaTypeDatabaseLZ4
	default:
		return MediaTypeDatabase
	}
}

func isDatabaseMediaType(mt string) bool {
	switch mt {
	case MediaTypeDatabase, MediaTypeDatabaseZstd, MediaTypeDatabaseLZ4:
		return true
	}
	return false
}
