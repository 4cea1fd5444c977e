package blobstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// metadataDir holds object metadata under a File root, one JSON map per key.
const metadataDir = ".metadata/"

// File is a Store rooted at a local directory. Keys are paths relative to
// Root. User metadata is
// kept in JSON files under Root/.metadata, which are hidden from listings.
type File struct {
	Root string
	// PageSize bounds the entries in one listing page. Defaults to 1000.
	PageSize int
}

// NewFile returns a store rooted at root.
func NewFile(root string) *File {
	return &File{Root: strings.TrimSuffix(filepath.Clean(root), "/")}
}

func (f *File) path(key string) string { return f.Root + "/" + key }

func notExist(err error, key string) error {
	if os.IsNotExist(err) || errors.Is(errors.NotExist, err) {
		return errors.E(errors.NotExist, err, key)
	}
	return errors.E(err, key)
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) ([]byte, Attrs, error) {
	attrs, err := f.Head(ctx, key)
	if err != nil {
		return nil, Attrs{}, err
	}
	data, err := file.ReadFile(ctx, f.path(key))
	if err != nil {
		return nil, Attrs{}, notExist(err, key)
	}
	return data, attrs, nil
}

// Head implements Store.
func (f *File) Head(ctx context.Context, key string) (Attrs, error) {
	info, err := file.Stat(ctx, f.path(key))
	if err != nil {
		return Attrs{}, notExist(err, key)
	}
	attrs := Attrs{Key: key, LastModified: info.ModTime().UTC(), Size: info.Size(), Metadata: map[string]string{}}
	data, err := file.ReadFile(ctx, f.path(metadataDir+key+".json"))
	switch {
	case err == nil:
		var md map[string]string
		if err := json.Unmarshal(data, &md); err != nil {
			return Attrs{}, errors.E(errors.Invalid, err, "metadata of", key)
		}
		attrs.Metadata = lowerKeys(md)
	case os.IsNotExist(err) || errors.Is(errors.NotExist, err):
	default:
		return Attrs{}, errors.E(err, "metadata of", key)
	}
	return attrs, nil
}

// Put implements Store.
func (f *File) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := writeFile(ctx, f.path(key), data); err != nil {
		return err
	}
	if len(metadata) == 0 {
		return nil
	}
	md, err := json.Marshal(lowerKeys(metadata))
	if err != nil {
		return errors.E(err, "metadata of", key)
	}
	return writeFile(ctx, f.path(metadataDir+key+".json"), md)
}

func writeFile(ctx context.Context, path string, data []byte) (err error) {
	if err = os.MkdirAll(path[:strings.LastIndex(path, "/")+1], 0755); err != nil {
		return errors.E(err, "create directory for", path)
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	_, err = out.Writer(ctx).Write(data)
	return err
}

// List implements Store. Keys are listed under the directory part of prefix;
// the continuation token is the index of the next key.
func (f *File) List(ctx context.Context, prefix, token string) (Page, error) {
	start := 0
	if token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil || start < 0 {
			return Page{}, errors.E(errors.Invalid, "bad continuation token", token)
		}
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	dir := f.Root + "/" + prefix[:strings.LastIndex(prefix, "/")+1]
	var entries []Entry
	lister := file.List(ctx, dir, true)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		key := strings.TrimPrefix(lister.Path(), f.Root+"/")
		if !strings.HasPrefix(key, prefix) || strings.HasPrefix(key, metadataDir) {
			continue
		}
		info := lister.Info()
		entries = append(entries, Entry{Key: key, LastModified: info.ModTime().UTC(), Size: info.Size()})
	}
	if err := lister.Err(); err != nil && !os.IsNotExist(err) && !errors.Is(errors.NotExist, err) {
		return Page{}, errors.E(err, "list", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	if start > len(entries) {
		start = len(entries)
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	page := Page{Entries: entries[start:end:end]}
	if end < len(entries) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}
