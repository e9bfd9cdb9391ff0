package pixelpipe

import (
	"errors"

	"github.com/meigma/pixelpipe/internal/pipetype"
	"github.com/meigma/pixelpipe/transform"
)

// Errors re-exported from internal/pipetype.
var (
	// ErrArchiveOpen is returned when an archive is missing or is not a valid zip file.
	ErrArchiveOpen = pipetype.ErrArchiveOpen

	// ErrEntryCopy is returned when an archive entry cannot be written to disk.
	ErrEntryCopy = pipetype.ErrEntryCopy

	// ErrUnsafePath is returned for entry names that escape the output directory.
	// It is always wrapped together with ErrEntryCopy.
	ErrUnsafePath = pipetype.ErrUnsafePath

	// ErrEntryTooLarge is returned when an entry exceeds the extraction size limit.
	// It is always wrapped together with ErrEntryCopy.
	ErrEntryTooLarge = pipetype.ErrEntryTooLarge

	// ErrDirectoryRead is returned when a directory cannot be listed.
	ErrDirectoryRead = pipetype.ErrDirectoryRead

	// ErrOutputDir is returned when an output directory cannot be created.
	ErrOutputDir = pipetype.ErrOutputDir

	// ErrDecode is returned when an input file is not a decodable image.
	ErrDecode = pipetype.ErrDecode

	// ErrEncode is returned when a transformed image cannot be encoded or written.
	ErrEncode = pipetype.ErrEncode
)

// Errors re-exported from transform.
var (
	// ErrUnknownTransform is returned when a transform name is not in the catalog.
	ErrUnknownTransform = transform.ErrUnknownTransform
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("pixelpipe: invalid config")

// ItemError reports the failure of a single image during ApplyTransform.
type ItemError = pipetype.ItemError

// Steps reported in ItemError.Op.
const (
	OpDecode = pipetype.OpDecode
	OpEncode = pipetype.OpEncode
)
