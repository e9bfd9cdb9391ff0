package pipetype

// ProgressEvent represents a progress update during extraction, scanning or
// transformation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry or file that was just processed, if applicable.
	Path string

	// BytesDone is the number of bytes written for Path.
	BytesDone uint64

	// FilesDone is the number of entries or images completed.
	FilesDone int

	// FilesTotal is the total number of entries or images.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages of a pipeline run.
const (
	// StageExtracting indicates archive entries are being written to disk.
	StageExtracting ProgressStage = iota

	// StageScanning indicates a directory is being listed for images.
	StageScanning

	// StageTransforming indicates images are being decoded, transformed and encoded.
	StageTransforming
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageExtracting:
		return "extracting"
	case StageScanning:
		return "scanning"
	case StageTransforming:
		return "transforming"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
