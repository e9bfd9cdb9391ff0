package sink

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	defaultDirPerm  fs.FileMode = 0o750
	defaultFileMode fs.FileMode = 0o644
	tempPrefix                  = ".pixelpipe-"
)

// FileSink writes files below a destination directory.
//
// Files are written to a temporary file in the same directory and renamed
// to the final path on Commit. An existing file at the final
// path is replaced, so the last commit for a path wins.
type FileSink struct {
	destDir      string
	preserveMode bool
	dirPerm      fs.FileMode
	fileMode     fs.FileMode
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithPreserveMode applies the permission bits passed to Writer on Commit.
// By default, committed files get mode 0644.
func WithPreserveMode(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode fs.FileMode) FileSinkOption {
	return func(s *FileSink) {
		s.dirPerm = mode
	}
}

// NewFileSink creates a FileSink that writes below destDir.
//
// destDir must already exist. Parent directories of written files are
// created automatically.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir:  destDir,
		dirPerm:  defaultDirPerm,
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the destination directory.
func (s *FileSink) Dir() string {
	return s.destDir
}

// ValidPath reports whether name is a slash-separated relative path that
// stays inside the destination directory.
func ValidPath(name string) bool {
	return fs.ValidPath(name) && !strings.Contains(name, `\`)
}

// CleanPath normalizes an archive entry name for use with the sink.
//
// Names that are absolute, contain a backslash or have a ".." element are
// rejected. Anything else is cleaned, so "./img//a.png" becomes "img/a.png"
// and "./" becomes ".".
func CleanPath(name string) (string, bool) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", false
	}
	for elem := range strings.SplitSeq(name, "/") {
		if elem == ".." {
			return "", false
		}
	}
	cleaned := path.Clean(name)
	return cleaned, ValidPath(cleaned)
}

// MkdirAll creates the directory name and any missing parents.
// It succeeds if the directory already exists.
func (s *FileSink) MkdirAll(name string) error {
	if !ValidPath(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrInvalid}
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()

	if err := root.MkdirAll(filepath.FromSlash(name), s.dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Join(s.destDir, filepath.FromSlash(name)), err)
	}
	return nil
}

// Writer returns a Committer for the file name.
//
// mode is applied on Commit when the sink preserves modes; otherwise the
// committed file gets mode 0644.
func (s *FileSink) Writer(name string, mode fs.FileMode) (Committer, error) {
	if !ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(name)
	destPath := filepath.Join(s.destDir, destRel)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	if err := root.MkdirAll(filepath.Dir(destRel), s.dirPerm); err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(destPath), err)
	}

	perm := s.fileMode
	if s.preserveMode && mode.Perm() != 0 {
		perm = mode.Perm()
	}

	// Temp file in the same directory keeps the rename atomic.
	tempFile, tempRel, err := createTempFile(root, filepath.Dir(destRel), tempPrefix)
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		destPath: destPath,
		destRel:  destRel,
		perm:     perm,
		tempFile: tempFile,
		tempRel:  tempRel,
		root:     root,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	destPath string
	destRel  string
	perm     fs.FileMode
	tempFile *os.File
	tempRel  string
	root     *os.Root
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, applies its mode, and renames it to the final path.
func (c *fileCommitter) Commit() error {
	if err := c.tempFile.Close(); err != nil {
		c.abort()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := c.root.Chmod(c.tempRel, c.perm); err != nil {
		c.abort()
		return fmt.Errorf("chmod: %w", err)
	}

	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		c.abort()
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}

	_ = c.root.Close() //nolint:errcheck // best-effort cleanup
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	if err := c.root.Remove(c.tempRel); err != nil {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return c.root.Close()
}

func (c *fileCommitter) abort() {
	_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
	_ = c.root.Close()           //nolint:errcheck // best-effort cleanup
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
