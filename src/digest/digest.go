// Package digest computes content hashes of archive entries.
package digest

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Algorithm names a supported hash function
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

// All is every supported algorithm, in a stable order
var All = []Algorithm{MD5, SHA256}

// ErrUnknownAlgorithm is returned for algorithms outside All
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Source opens an independent read stream of the content to hash.
// archive.Entry satisfies it.
type Source interface {
	Open() (io.ReadCloser, error)
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

// Compute hashes src once per requested algorithm, each over its own stream
// and in its own goroutine. Results are uppercase hex. Either every digest
// succeeds or an error is returned; partial results are never returned.
func Compute(ctx context.Context, src Source, algorithms []Algorithm) (map[Algorithm]string, error) {
	hashers := make(map[Algorithm]hash.Hash, len(algorithms))
	for _, alg := range algorithms {
		if _, dup := hashers[alg]; dup {
			continue
		}
		h, err := newHash(alg)
		if err != nil {
			return nil, err
		}
		hashers[alg] = h
	}

	results := make(map[Algorithm]string, len(hashers))
	sums := make([]string, len(hashers))
	order := sortedKeys(hashers)

	g, gctx := errgroup.WithContext(ctx)
	for i, alg := range order {
		h := hashers[alg]
		g.Go(func() error {
			sum, err := hashStream(gctx, src, h)
			if err != nil {
				return fmt.Errorf("computing %s: %w", alg, err)
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, alg := range order {
		results[alg] = sums[i]
	}
	return results, nil
}

// hashStream drains one fresh stream of src into h. The digest is only read
// after io.Copy reached end of stream.
func hashStream(ctx context.Context, src Source, h hash.Hash) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if _, err := io.Copy(h, contextReader{ctx: ctx, r: rc}); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// ParseAlgorithms turns names like "MD5" or " sha256" into algorithms
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	out := make([]Algorithm, 0, len(names))
	for _, name := range names {
		alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
		if _, err := newHash(alg); err != nil {
			return nil, err
		}
		out = append(out, alg)
	}
	return out, nil
}

func sortedKeys(m map[Algorithm]hash.Hash) []Algorithm {
	keys := make([]Algorithm, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
