package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

func write(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestBuild_ThreeFilesSorted(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.txt", []byte("bravo"))
	write(t, root, "a.txt", []byte("alpha"))
	write(t, root, "dir/c.txt", []byte("charlie"))

	b := &Builder{MaxFiles: 500, Workers: 4}
	records, skipped, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, records, 3)

	require.Equal(t, "a.txt", records[0].Path)
	require.Equal(t, "b.txt", records[1].Path)
	require.Equal(t, "dir/c.txt", records[2].Path)
	require.Equal(t, "alpha", records[0].Content)
	require.Equal(t, "utf-8", records[0].Encoding)
	require.Equal(t, int64(5), records[0].Size)
}

func TestBuild_Exclusions(t *testing.T) {
	root := t.TempDir()
	write(t, root, "keep.go", []byte("package main"))
	write(t, root, "node_modules/x/dep.js", []byte("skip me"))
	write(t, root, "notes.log", []byte("skip me too"))
	write(t, root, "deep/vendor/lib.go", []byte("vendored"))

	b := &Builder{
		Exclude:  []string{"node_modules", "vendor", "*.log"},
		MaxFiles: 500,
		Workers:  2,
	}
	records, _, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "keep.go", records[0].Path)
}

func TestBuild_MaxFilesCap(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		write(t, root, name, []byte(name))
	}

	b := &Builder{MaxFiles: 3, Workers: 2}
	records, _, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestBuild_DeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.txt", "m/a.txt", "m/b.txt", "q.txt", "a/very/deep/file.txt"} {
		write(t, root, name, []byte(name))
	}

	var first []string
	for run := 0; run < 5; run++ {
		b := &Builder{MaxFiles: 100, Workers: 3}
		records, _, err := b.Build(context.Background(), root)
		require.NoError(t, err)
		paths := Paths(records)
		if run == 0 {
			first = paths
			continue
		}
		require.Equal(t, first, paths, "ordering must not depend on read-completion timing")
	}
}

// trackedEncoding decodes bytes unchanged while counting how many decodes
// run at once. Decoding happens on the read pool, so the counter observes
// the pool's in-flight reads.
type trackedEncoding struct {
	delay    time.Duration
	inflight *int64
	maxSeen  *int64
	mu       *sync.Mutex
}

func (e trackedEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: trackedTransformer(e)}
}

func (e trackedEncoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: transform.Nop}
}

type trackedTransformer trackedEncoding

func (t trackedTransformer) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	cur := atomic.AddInt64(t.inflight, 1)
	defer atomic.AddInt64(t.inflight, -1)
	t.mu.Lock()
	if cur > *t.maxSeen {
		*t.maxSeen = cur
	}
	t.mu.Unlock()

	time.Sleep(t.delay)
	n := copy(dst, src)
	if n < len(src) {
		return n, n, transform.ErrShortDst
	}
	return n, n, nil
}

func (trackedTransformer) Reset() {}

func TestBuild_ReadConcurrencyBound(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 12; i++ {
		write(t, root, fmt.Sprintf("f%02d.txt", i), []byte("content"))
	}

	var inflight, maxSeen int64
	var mu sync.Mutex
	enc := trackedEncoding{
		delay:    10 * time.Millisecond,
		inflight: &inflight,
		maxSeen:  &maxSeen,
		mu:       &mu,
	}

	b := &Builder{
		MaxFiles:  100,
		Workers:   3,
		Encodings: []Encoding{{Name: "utf-8", Enc: enc}},
	}
	records, skipped, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, records, 12)
	require.LessOrEqual(t, maxSeen, int64(3), "in-flight reads exceeded the worker bound")
}

func TestBuild_EncodingFallback(t *testing.T) {
	root := t.TempDir()
	write(t, root, "plain.txt", []byte("plain utf-8"))
	// UTF-16LE with BOM: "hi"
	write(t, root, "wide.txt", []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00})
	// Latin-1 "café" (0xE9 is invalid UTF-8 on its own)
	write(t, root, "latin.txt", []byte{'c', 'a', 'f', 0xE9})

	b := &Builder{MaxFiles: 10, Workers: 2}
	records, skipped, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, records, 3)

	byPath := map[string]FileRecord{}
	for _, r := range records {
		byPath[r.Path] = r
	}
	require.Equal(t, "utf-8", byPath["plain.txt"].Encoding)
	require.Equal(t, "utf-16", byPath["wide.txt"].Encoding)
	require.Equal(t, "hi", byPath["wide.txt"].Content)
	require.Equal(t, "latin-1", byPath["latin.txt"].Encoding)
	require.Equal(t, "café", byPath["latin.txt"].Content)
}

func TestBuild_EncodingExhausted(t *testing.T) {
	root := t.TempDir()
	write(t, root, "bad.txt", []byte{'a', 0xE9, 'b'})

	// UTF-8 only: the stray 0xE9 byte cannot decode.
	b := &Builder{
		MaxFiles:  10,
		Workers:   1,
		Encodings: []Encoding{{Name: "utf-8"}},
	}
	records, skipped, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Len(t, skipped, 1)
	require.Equal(t, SkipEncodingExhausted, skipped[0].Reason)
	require.ErrorIs(t, skipped[0].Err, ErrEncodingExhausted)
}

func TestBuild_BinarySkipped(t *testing.T) {
	root := t.TempDir()
	write(t, root, "img.png", []byte{0x89, 'P', 'N', 'G'})
	write(t, root, "blob.dat", []byte{'a', 0x00, 'b'})
	write(t, root, "ok.txt", []byte("fine"))

	b := &Builder{MaxFiles: 10, Workers: 2}
	records, skipped, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "ok.txt", records[0].Path)
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		require.Equal(t, SkipBinary, s.Reason)
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &Builder{MaxFiles: 10, Workers: 1}
	_, _, err := b.Build(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCache_HitOnUnchangedFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", []byte("cached content"))

	cache, err := NewCache(16)
	require.NoError(t, err)

	b := &Builder{MaxFiles: 10, Workers: 1, Cache: cache}
	first, _, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	second, _, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRenderTree(t *testing.T) {
	got := RenderTree([]string{"src/main.go", "src/utils/helper.go", "README.md"})
	want := "├── README.md\n" +
		"└── src\n" +
		"    ├── main.go\n" +
		"    └── utils\n" +
		"        └── helper.go"
	require.Equal(t, want, got)
}
