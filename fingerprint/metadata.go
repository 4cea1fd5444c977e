package fingerprint

import (
	"regexp"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/blobstore"
)

// Object metadata keys written next to each fingerprint.
const (
	CreatedKey = "fingerprint-created"
	SubjectKey = "subject-identifier"
	LibraryKey = "library-identifier"
)

// Metadata describes where a fingerprint came from. Any field may be empty.
type Metadata struct {
	Created time.Time `json:"created,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Library string    `json:"library,omitempty"`
}

// MetadataResolver fills in fields of m for the fingerprint stored at key.
// Resolvers only set fields that are still empty.
type MetadataResolver interface {
	Resolve(key string, attrs blobstore.Attrs, m *Metadata)
}

// StoredMetadata reads the metadata written alongside the fingerprint object.
// Created falls back to the object's modification time.
type StoredMetadata struct{}

// Resolve implements MetadataResolver.
func (StoredMetadata) Resolve(key string, attrs blobstore.Attrs, m *Metadata) {
	if m.Created.IsZero() {
		if v := strings.TrimSpace(attrs.Metadata[CreatedKey]); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				log.Debug.Printf("%s: ignoring %s %q: %v", key, CreatedKey, v, err)
			} else {
				m.Created = t
			}
		}
		if m.Created.IsZero() {
			m.Created = attrs.LastModified
		}
	}
	if m.Subject == "" {
		m.Subject = strings.TrimSpace(attrs.Metadata[SubjectKey])
	}
	if m.Library == "" {
		m.Library = strings.TrimSpace(attrs.Metadata[LibraryKey])
	}
}

// FilenamePattern guesses subject and library identifiers from the reads file
// name. It is a last resort for fingerprints written before identifiers were
// stored as metadata.
type FilenamePattern struct {
	Folder  string
	Subject *regexp.Regexp
	Library *regexp.Regexp
}

// Default identifier shapes.
var (
	SubjectPattern = regexp.MustCompile(`SBJ\d{5}`)
	LibraryPattern = regexp.MustCompile(`L\d{7}`)
)

// Resolve implements MetadataResolver. The key is decoded to its URL first when
// it is a fingerprint key in Folder.
func (p FilenamePattern) Resolve(key string, _ blobstore.Attrs, m *Metadata) {
	name := key
	if p.Folder != "" {
		if id, err := DecodeKey(p.Folder, key); err == nil {
			name = id
		}
	}
	if m.Subject == "" && p.Subject != nil {
		m.Subject = p.Subject.FindString(name)
	}
	if m.Library == "" && p.Library != nil {
		m.Library = p.Library.FindString(name)
	}
}

// Resolvers tries each resolver in order.
type Resolvers []MetadataResolver

// Resolve implements MetadataResolver.
func (rs Resolvers) Resolve(key string, attrs blobstore.Attrs, m *Metadata) {
	for _, r := range rs {
		r.Resolve(key, attrs, m)
	}
}

// DefaultResolver returns stored metadata with a filename fallback for
// fingerprints in folder.
func DefaultResolver(folder string) MetadataResolver {
	return Resolvers{
		StoredMetadata{},
		FilenamePattern{Folder: folder, Subject: SubjectPattern, Library: LibraryPattern},
	}
}
