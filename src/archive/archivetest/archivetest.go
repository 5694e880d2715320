// Package archivetest builds zip fixtures for tests.
package archivetest

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
)

// File is one entry of a fixture archive. A Name ending in "/" is stored as
// a directory.
type File struct {
	Name    string
	Content []byte
	Store   bool // store uncompressed instead of deflating
}

// Zip returns the bytes of a zip archive holding files in order.
func Zip(t testing.TB, files ...File) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Store {
			method = zip.Store
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", f.Name, err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			t.Fatalf("writing zip entry %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

// Content returns n deterministic pseudo-random bytes.
func Content(n int) []byte {
	out := make([]byte, n)
	var x uint32 = 2463534242
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}
