package pixelpipe

import "github.com/meigma/pixelpipe/internal/pipetype"

// Re-export progress types from internal/pipetype.
type (
	// ProgressEvent represents a progress update during extraction, scanning
	// or transformation.
	ProgressEvent = pipetype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = pipetype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = pipetype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageExtracting indicates archive entries are being written to disk.
	StageExtracting = pipetype.StageExtracting

	// StageScanning indicates a directory is being listed for images.
	StageScanning = pipetype.StageScanning

	// StageTransforming indicates images are being decoded, transformed and encoded.
	StageTransforming = pipetype.StageTransforming
)
