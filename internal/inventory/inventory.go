package inventory

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrEncodingExhausted marks a file none of the configured encodings could
// decode. The file is skipped; the build continues.
var ErrEncodingExhausted = errors.New("inventory: no configured encoding decodes content")

// Skip reasons recorded for observability.
const (
	SkipFileAccess        = "file_access"
	SkipBinary            = "binary"
	SkipEncodingExhausted = "encoding_exhausted"
)

// FileRecord is one successfully read project file. Immutable once produced.
type FileRecord struct {
	Path     string // repo-relative, forward slashes
	Content  string
	Encoding string // name of the encoding that decoded the content
	Size     int64
}

// Skipped records a file dropped during the build and why.
type Skipped struct {
	Path   string
	Reason string
	Err    error
}

// Builder walks a project tree, applies exclusion rules, and reads file
// content concurrently with an encoding fallback chain. Output ordering is
// deterministic regardless of read-completion order.
type Builder struct {
	// Exclude patterns match either a path segment exactly or the whole
	// relative path as a glob.
	Exclude  []string
	MaxFiles int
	Workers  int

	// Encodings tried in order for each file. Nil means DefaultEncodings.
	Encodings []Encoding

	// Cache, when set, short-circuits reads of unchanged files.
	Cache *Cache

	Log *logrus.Logger
}

// Build walks root and returns the decoded inventory sorted by relative
// path, plus the skipped-file records. Enumeration stops once MaxFiles
// candidates are selected; reads run on a pool of Workers goroutines.
func (b *Builder) Build(ctx context.Context, root string) ([]FileRecord, []Skipped, error) {
	if b.MaxFiles <= 0 {
		return nil, nil, errors.New("inventory: MaxFiles must be positive")
	}
	workers := b.Workers
	if workers <= 0 {
		workers = 4
	}
	encodings := b.Encodings
	if encodings == nil {
		encodings = DefaultEncodings()
	}
	log := b.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	candidates, skipped, err := b.enumerate(root)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu      sync.Mutex
		records []FileRecord
		wg      sync.WaitGroup
		sema    = make(chan struct{}, workers)
	)
	for _, rel := range candidates {
		// Stop submitting new work once the run is canceled; reads already
		// dispatched are allowed to finish.
		if ctx.Err() != nil {
			break
		}
		sema <- struct{}{}
		wg.Add(1)
		go func(rel string) {
			defer wg.Done()
			defer func() { <-sema }()
			rec, skip := b.readOne(root, rel, encodings, log)
			mu.Lock()
			if skip != nil {
				skipped = append(skipped, *skip)
			} else {
				records = append(records, rec)
			}
			mu.Unlock()
		}(rel)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Reproducible downstream prompts: order by path, not completion time.
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	return records, skipped, nil
}

// enumerate selects up to MaxFiles candidate paths, applying exclusions and
// the binary-extension filter during the walk.
func (b *Builder) enumerate(root string) (candidates []string, skipped []Skipped, err error) {
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries never abort the build.
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if b.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if isBinaryExt(rel) {
			skipped = append(skipped, Skipped{Path: rel, Reason: SkipBinary})
			return nil
		}
		candidates = append(candidates, rel)
		if len(candidates) >= b.MaxFiles {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return candidates, skipped, nil
}

// excluded reports whether any exclusion pattern matches the relative path:
// an exact path-segment match, or a glob match against the whole path or
// the base name.
func (b *Builder) excluded(rel string) bool {
	segs := strings.Split(rel, "/")
	for _, pat := range b.Exclude {
		for _, s := range segs {
			if s == pat {
				return true
			}
		}
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
		if ok, _ := path.Match(pat, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

func (b *Builder) readOne(root, rel string, encodings []Encoding, log *logrus.Logger) (FileRecord, *Skipped) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	st, err := os.Stat(abs)
	if err != nil {
		log.WithField("path", rel).WithError(err).Warn("skipping unreadable file")
		return FileRecord{}, &Skipped{Path: rel, Reason: SkipFileAccess, Err: err}
	}

	if b.Cache != nil {
		if rec, ok := b.Cache.Get(abs, st); ok {
			rec.Path = rel
			return rec, nil
		}
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		log.WithField("path", rel).WithError(err).Warn("skipping unreadable file")
		return FileRecord{}, &Skipped{Path: rel, Reason: SkipFileAccess, Err: err}
	}
	// NUL bytes mean binary content, except in UTF-16 where every other
	// byte of ASCII text is NUL. A BOM hands the call to the decoder chain.
	if bytes.IndexByte(raw, 0) >= 0 && !hasUTF16BOM(raw) {
		log.WithField("path", rel).Debug("skipping binary file")
		return FileRecord{}, &Skipped{Path: rel, Reason: SkipBinary}
	}

	content, encName, err := Decode(raw, encodings)
	if err != nil {
		log.WithField("path", rel).Warn("no configured encoding decodes file, skipping")
		return FileRecord{}, &Skipped{Path: rel, Reason: SkipEncodingExhausted, Err: err}
	}

	rec := FileRecord{Path: rel, Content: content, Encoding: encName, Size: st.Size()}
	if b.Cache != nil {
		b.Cache.Add(abs, st, rec)
	}
	return rec, nil
}

// Paths returns the relative paths of an inventory, preserving order.
func Paths(records []FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}

func hasUTF16BOM(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	return (raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)
}

func isBinaryExt(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	// images
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".bmp", ".tiff":
		return true
	// audio / video
	case ".mp3", ".wav", ".ogg", ".flac", ".mp4", ".mov", ".mkv", ".webm", ".avi":
		return true
	// archives / binaries
	case ".pdf", ".zip", ".jar", ".gz", ".tgz", ".bz2", ".7z", ".exe", ".dll", ".dylib", ".so", ".woff", ".woff2":
		return true
	}
	return false
}
