package pipeline

import (
	"context"
	"fmt"
	"io"
	"mime"

	"github.com/leMaik/chunky-pr-as-update-site/src/archive"
)

// copyBufferSize is the chunk size used while streaming an entry.
const copyBufferSize = 32 * 1024

// Framing is the response metadata of a streamed entry.
type Framing struct {
	ContentLength      uint64
	ContentType        string
	ContentDisposition string
}

// FramingFor returns the framing of entry: its uncompressed size, a binary
// content type and an attachment disposition naming the file.
func FramingFor(entry *archive.Entry) Framing {
	return Framing{
		ContentLength:      entry.Size,
		ContentType:        "application/octet-stream",
		ContentDisposition: contentDisposition(entry.FileName),
	}
}

// contentDisposition always quotes the file name. Names that cannot be
// quoted as plain ASCII are encoded the RFC 2231 way.
func contentDisposition(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return mime.FormatMediaType("attachment", map[string]string{"filename": name})
		}
	}
	return `attachment; filename="` + name + `"`
}

// FramedWriter receives the framing once the entry stream is open and
// before the first content byte.
type FramedWriter interface {
	io.Writer
	SetFraming(Framing)
}

// StreamEntry opens a fresh stream of entry and copies it to w until the
// end of the entry, a read or write error, or cancellation of ctx.
// An open failure is returned before w sees anything and wraps
// archive.ErrEntryUnreadable.
func (p *Pipeline) StreamEntry(ctx context.Context, entry *archive.Entry, w FramedWriter) (Framing, error) {
	framing := FramingFor(entry)

	rc, err := entry.Open()
	if err != nil {
		return framing, err
	}
	defer rc.Close()

	w.SetFraming(framing)

	n, err := copyContext(ctx, w, rc)
	p.metrics.BytesServed(ctx, n)
	if err != nil {
		p.log.Debug("[Pipeline] Streaming %s stopped after %d of %d bytes: %v", entry.FileName, n, entry.Size, err)
		return framing, fmt.Errorf("streaming %s: %w", entry.FileName, err)
	}
	return framing, nil
}

// copyContext is io.Copy that checks ctx between chunks.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
