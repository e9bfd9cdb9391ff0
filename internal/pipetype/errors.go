package pipetype

import "errors"

// Sentinel errors for pipeline operations.
var (
	// ErrArchiveOpen is returned when an archive is missing or is not a valid zip file.
	ErrArchiveOpen = errors.New("pixelpipe: cannot open archive")

	// ErrEntryCopy is returned when an archive entry cannot be written to disk.
	ErrEntryCopy = errors.New("pixelpipe: archive entry copy failed")

	// ErrUnsafePath is returned for entry names that escape the output directory.
	ErrUnsafePath = errors.New("pixelpipe: unsafe entry path")

	// ErrEntryTooLarge is returned when an entry exceeds the configured size limit.
	ErrEntryTooLarge = errors.New("pixelpipe: entry exceeds size limit")

	// ErrDirectoryRead is returned when a directory cannot be listed.
	ErrDirectoryRead = errors.New("pixelpipe: cannot read directory")

	// ErrOutputDir is returned when an output directory cannot be created.
	ErrOutputDir = errors.New("pixelpipe: cannot create output directory")

	// ErrDecode is returned when an input file is not a decodable image.
	ErrDecode = errors.New("pixelpipe: image decode failed")

	// ErrEncode is returned when a transformed image cannot be encoded or written.
	ErrEncode = errors.New("pixelpipe: image encode failed")
)

// Steps reported in ItemError.Op.
const (
	OpDecode = "decode"
	OpEncode = "encode"
)

// ItemError reports the failure of a single image in a batch.
type ItemError struct {
	// Op is the step that failed ("decode" or "encode").
	Op string

	// Path is the input file.
	Path string

	Err error
}

func (e *ItemError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
