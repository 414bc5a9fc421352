package inventory

import (
	"io/fs"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps decoded file content keyed by absolute path + size + mtime,
// so repeated builds over an unchanged tree skip the read and decode work.
// Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, FileRecord]
}

// NewCache returns a cache holding up to size decoded files.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, FileRecord](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(abs string, st fs.FileInfo) (FileRecord, bool) {
	return c.lru.Get(cacheKey(abs, st))
}

func (c *Cache) Add(abs string, st fs.FileInfo, rec FileRecord) {
	c.lru.Add(cacheKey(abs, st), rec)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

func cacheKey(abs string, st fs.FileInfo) string {
	return abs + "|" + strconv.FormatInt(st.Size(), 10) + "|" + strconv.FormatInt(st.ModTime().UnixNano(), 10)
}
