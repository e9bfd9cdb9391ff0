package extract

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pixelpipe/internal/pipetype"
	"github.com/meigma/pixelpipe/internal/testutil"
)

// tree returns every path below dir (slash-separated) mapped to its content;
// directories map to nil.
func tree(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = nil
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestExtractTree(t *testing.T) {
	t.Parallel()

	png := testutil.EncodePNG(t, testutil.NewNRGBA(2, 1, []byte{10, 20, 30, 255, 200, 200, 200, 255}))
	big := bytes.Repeat([]byte("0123456789abcdef"), 20_000)
	archive := testutil.WriteZip(t, t.TempDir(), "images.zip",
		testutil.Dir("img"),
		testutil.File("img/a.png", png),
		testutil.Dir("img/empty"),
		testutil.File("img/nested/deep/big.bin", big),
		testutil.ZipEntry{Name: "stored.txt", Body: []byte("stored"), Method: zip.Store},
		testutil.File("empty.txt", nil),
	)
	out := filepath.Join(t.TempDir(), "unzipped")

	got, err := New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)

	assert.Equal(t, map[string][]byte{
		"img":                     nil,
		"img/a.png":               png,
		"img/empty":               nil,
		"img/nested":              nil,
		"img/nested/deep":         nil,
		"img/nested/deep/big.bin": big,
		"stored.txt":              []byte("stored"),
		"empty.txt":               {},
	}, tree(t, out))
}

func TestExtractFileBeforeDirectoryEntry(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.File("b/c/x.png", []byte("x")),
		testutil.Dir("b/c"),
		testutil.Dir("b"),
	)
	out := t.TempDir()

	_, err := New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"b":         nil,
		"b/c":       nil,
		"b/c/x.png": []byte("x"),
	}, tree(t, out))
}

func TestExtractIdempotent(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.Dir("img"),
		testutil.Dir("img/empty"),
		testutil.File("img/a.png", []byte("first")),
	)
	out := t.TempDir()

	_, err := New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	_, err = New().Extract(context.Background(), archive, out)
	require.NoError(t, err)

	assert.Equal(t, map[string][]byte{
		"img":       nil,
		"img/empty": nil,
		"img/a.png": []byte("first"),
	}, tree(t, out))
}

func TestExtractCleansEntryNames(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.Dir("./"),
		testutil.Dir("./img/sub"),
		testutil.File("./img/a.png", []byte("a")),
		testutil.File("img//b.png", []byte("b")),
		testutil.File("img/./sub/c.png", []byte("c")),
	)
	out := t.TempDir()

	_, err := New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"img":           nil,
		"img/sub":       nil,
		"img/a.png":     []byte("a"),
		"img/b.png":     []byte("b"),
		"img/sub/c.png": []byte("c"),
	}, tree(t, out))
}

func TestExtractDirPerm(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.Dir("img/empty"),
		testutil.File("other/a.png", []byte("a")),
	)
	out := filepath.Join(t.TempDir(), "unzipped")

	_, err := New(WithDirPerm(0o700)).Extract(context.Background(), archive, out)
	require.NoError(t, err)
	for _, dir := range []string{"", "img", "img/empty", "other"} {
		info, err := os.Stat(filepath.Join(out, filepath.FromSlash(dir)))
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o700), info.Mode().Perm(), dir)
	}
}

func TestExtractOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := testutil.WriteFile(t, filepath.Join(dir, "garbage.zip"), []byte("this is not a zip archive"))

	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "missing.zip"),
		"garbage": garbage,
		"dir":     dir,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out := filepath.Join(t.TempDir(), "out")
			_, err := New().Extract(context.Background(), path, out)
			require.ErrorIs(t, err, pipetype.ErrArchiveOpen)
			assert.Contains(t, err.Error(), path)

			_, statErr := os.Stat(out)
			assert.ErrorIs(t, statErr, fs.ErrNotExist, "output dir must not be created")
		})
	}
}

func TestExtractUnsafePaths(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"../evil.png", "/abs.png", "a/../../evil.png", "img/../evil.png", `a\..\..\evil.png`} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			parent := t.TempDir()
			out := filepath.Join(parent, "out")
			archive := testutil.WriteZip(t, t.TempDir(), "a.zip", testutil.File(name, []byte("evil")))

			_, err := New().Extract(context.Background(), archive, out)
			require.ErrorIs(t, err, pipetype.ErrEntryCopy)
			require.ErrorIs(t, err, pipetype.ErrUnsafePath)
			assert.Contains(t, err.Error(), name)

			assert.Equal(t, map[string][]byte{"out": nil}, tree(t, parent))
		})
	}
}

func TestExtractCorruptEntry(t *testing.T) {
	t.Parallel()

	body := []byte("the quick brown fox jumps over the lazy dog")
	data := testutil.BuildZip(t,
		testutil.File("ok.txt", []byte("fine")),
		testutil.ZipEntry{Name: "img/broken.png", Body: body, Method: zip.Store},
	)
	idx := bytes.Index(data, body)
	require.Positive(t, idx)
	data[idx] ^= 0xff
	archive := testutil.WriteFile(t, filepath.Join(t.TempDir(), "corrupt.zip"), data)
	out := t.TempDir()

	_, err := New().Extract(context.Background(), archive, out)
	require.ErrorIs(t, err, pipetype.ErrEntryCopy)
	require.ErrorIs(t, err, zip.ErrChecksum)
	assert.Contains(t, err.Error(), "img/broken.png")

	// The partial file never reaches its final path.
	assert.Equal(t, map[string][]byte{
		"ok.txt": []byte("fine"),
		"img":    nil,
	}, tree(t, out))
}

func TestExtractMaxFileSize(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.File("small.bin", bytes.Repeat([]byte{1}, 10)),
		testutil.File("large.bin", bytes.Repeat([]byte{2}, 11)),
	)
	out := t.TempDir()

	_, err := New(WithMaxFileSize(10)).Extract(context.Background(), archive, out)
	require.ErrorIs(t, err, pipetype.ErrEntryCopy)
	require.ErrorIs(t, err, pipetype.ErrEntryTooLarge)
	assert.Contains(t, err.Error(), "large.bin")
	assert.Equal(t, map[string][]byte{"small.bin": bytes.Repeat([]byte{1}, 10)}, tree(t, out))

	out = t.TempDir()
	_, err = New(WithMaxFileSize(0)).Extract(context.Background(), archive, out)
	require.NoError(t, err)
	assert.Len(t, tree(t, out), 2)
}

func TestExtractZstdEntry(t *testing.T) {
	t.Parallel()

	body := bytes.Repeat([]byte("zstd compressed entry "), 1000)
	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.ZipEntry{Name: "img/z.bin", Body: body, Method: zstd.ZipMethodWinZip},
	)
	out := t.TempDir()

	_, err := New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"img": nil, "img/z.bin": body}, tree(t, out))
}

func TestExtractPreserveMode(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.ZipEntry{Name: "run.sh", Body: []byte("#!/bin/sh\n"), Method: zip.Deflate, Mode: 0o755},
	)

	out := t.TempDir()
	_, err := New(WithPreserveMode(true)).Extract(context.Background(), archive, out)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(out, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	out = t.TempDir()
	_, err = New().Extract(context.Background(), archive, out)
	require.NoError(t, err)
	info, err = os.Stat(filepath.Join(out, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), info.Mode().Perm())
}

func TestExtractCanceled(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip", testutil.File("a.png", []byte("a")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, archive, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractProgress(t *testing.T) {
	t.Parallel()

	archive := testutil.WriteZip(t, t.TempDir(), "a.zip",
		testutil.Dir("img"),
		testutil.File("img/a.png", []byte("abc")),
	)

	var mu sync.Mutex
	var events []pipetype.ProgressEvent
	_, err := New(WithProgress(func(e pipetype.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})).Extract(context.Background(), archive, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []pipetype.ProgressEvent{
		{Stage: pipetype.StageExtracting, Path: "img", FilesDone: 1, FilesTotal: 2},
		{Stage: pipetype.StageExtracting, Path: "img/a.png", BytesDone: 3, FilesDone: 2, FilesTotal: 2},
	}, events)
}

func TestEntries(t *testing.T) {
	t.Parallel()

	data := testutil.BuildZip(t,
		testutil.File("z.png", []byte("z")),
		testutil.Dir("dir"),
		testutil.File("dir/a.png", []byte("abc")),
	)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	var kinds []Kind
	for _, e := range Entries(r) {
		names = append(names, e.Name)
		kinds = append(kinds, e.Kind)
	}
	// Archive order, not sorted order.
	assert.Equal(t, []string{"z.png", "dir", "dir/a.png"}, names)
	assert.Equal(t, []Kind{KindFile, KindDirectory, KindFile}, kinds)
	assert.False(t, sort.StringsAreSorted(names))

	for i, e := range Entries(r) {
		assert.Equal(t, 0, i)
		assert.Equal(t, "z.png", e.Name)
		break
	}
}
