// Package archive locates the packaged library inside a build artifact zip.
//
// Artifacts produced by the build are single-file packages, so only the
// first regular entry of a container is of interest. Parsing is lazy: opening
// a container reads the central directory only, and entry contents are
// decompressed on demand, once per Open call.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrContainerCorrupt reports a buffer that is not a readable zip
	ErrContainerCorrupt = errors.New("zip container corrupt")
	// ErrEntryUnreadable reports a located entry whose stream could not be opened
	ErrEntryUnreadable = errors.New("zip entry unreadable")
)

// Container walks the entries of an in-memory zip archive in order.
type Container struct {
	reader *zip.Reader
	next   int
}

// Entry is a handle to one file of a Container. It stays valid as long as
// the archive buffer it was opened from.
type Entry struct {
	file *zip.File

	// Path is the name stored in the archive, FileName its last element
	Path     string
	FileName string
	// Size is the declared uncompressed size
	Size uint64
}

// OpenContainer parses the zip central directory of data.
func OpenContainer(data []byte) (*Container, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerCorrupt, err)
	}
	return &Container{reader: reader}, nil
}

// Next advances to the next regular file, skipping directory entries.
// It returns io.EOF after the last entry.
func (c *Container) Next() (*Entry, error) {
	for c.next < len(c.reader.File) {
		file := c.reader.File[c.next]
		c.next++

		if file.FileInfo().IsDir() {
			continue
		}
		return &Entry{
			file:     file,
			Path:     file.Name,
			FileName: path.Base(file.Name),
			Size:     file.UncompressedSize64,
		}, nil
	}
	return nil, io.EOF
}

// OpenFirstEntry opens data as a zip container and returns its first file.
// A container without any file is reported as ErrContainerCorrupt: build
// artifacts always hold exactly one.
func OpenFirstEntry(data []byte) (*Container, *Entry, error) {
	container, err := OpenContainer(data)
	if err != nil {
		return nil, nil, err
	}

	entry, err := container.Next()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: no entries", ErrContainerCorrupt)
	}
	if err != nil {
		return nil, nil, err
	}
	return container, entry, nil
}

// Open returns a fresh decompressing stream over the entry. Each call is
// independent, so a digest pass and a download can read concurrently.
// Reads report zip.ErrChecksum if the content does not match the header.
func (e *Entry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEntryUnreadable, e.Path, err)
	}
	return rc, nil
}
