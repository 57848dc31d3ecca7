package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"glowpos/backend/internal/domain"
	"glowpos/backend/internal/store"
)

// collection is a file-backed sequence of records of one entity type,
// persisted as a single JSON array. A mutex serializes every
// read-modify-write cycle so concurrent requests cannot clobber each
// other's writes.
type collection[T any, PT interface {
	*T
	domain.Record
}] struct {
	mu   sync.Mutex
	path string
}

func newCollection[T any, PT interface {
	*T
	domain.Record
}](dir, name string) *collection[T, PT] {
	return &collection[T, PT]{path: filepath.Join(dir, name)}
}

// readAll loads the full collection. A missing file is the bootstrap path
// for a fresh deployment and yields an empty collection, not an error.
func (c *collection[T, PT]) readAll() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.path), err)
	}
	return records, nil
}

// writeAll replaces the entire file contents. The payload lands in a temp
// file first and is renamed into place so a crash mid-write cannot leave a
// truncated collection behind.
func (c *collection[T, PT]) writeAll(records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *collection[T, PT]) all() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readAll()
}

func (c *collection[T, PT]) get(id int) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readAll()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if PT(&records[i]).RecordMeta().ID == id {
			found := records[i]
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// create assigns id = max(existing ids, 0)+1, stamps both timestamps,
// appends and writes the collection back. Note the id rule: after deleting
// the record holding the maximum id, that id is handed out again.
func (c *collection[T, PT]) create(record T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readAll()
	if err != nil {
		return nil, err
	}

	maxID := 0
	for i := range records {
		if id := PT(&records[i]).RecordMeta().ID; id > maxID {
			maxID = id
		}
	}

	now := time.Now().UTC()
	meta := PT(&record).RecordMeta()
	meta.ID = maxID + 1
	meta.CreatedAt = now
	meta.UpdatedAt = now

	records = append(records, record)
	if err := c.writeAll(records); err != nil {
		return nil, err
	}
	return &record, nil
}

// update replaces the stored record with the given one, force-restoring the
// original id and created_at. A caller-supplied record can never change a
// record's identity, no matter what its meta fields say.
func (c *collection[T, PT]) update(id int, record T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readAll()
	if err != nil {
		return nil, err
	}

	for i := range records {
		stored := PT(&records[i]).RecordMeta()
		if stored.ID != id {
			continue
		}

		meta := PT(&record).RecordMeta()
		meta.ID = stored.ID
		meta.CreatedAt = stored.CreatedAt
		meta.UpdatedAt = time.Now().UTC()

		records[i] = record
		if err := c.writeAll(records); err != nil {
			return nil, err
		}
		return &record, nil
	}
	return nil, store.ErrNotFound
}

// delete removes the record with the matching id and reports whether
// anything was removed. The file is only rewritten when something changed.
func (c *collection[T, PT]) delete(id int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readAll()
	if err != nil {
		return false, err
	}

	kept := make([]T, 0, len(records))
	for i := range records {
		if PT(&records[i]).RecordMeta().ID == id {
			continue
		}
		kept = append(kept, records[i])
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := c.writeAll(kept); err != nil {
		return false, err
	}
	return true, nil
}
