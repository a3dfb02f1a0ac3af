package resolve

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/usestring/aptrace/pkg/aplog"
)

// Batch answers context queries read line by line, keeping one reader open
// per log path.
//
// Each input line is "path\toffset\tlength"; each output line is
// "path\toffset\tcontext". Queries that cannot be answered produce an empty
// context so output stays aligned with input.
type Batch struct {
	opts []aplog.Option

	mu      sync.Mutex
	readers map[string]*aplog.Reader
}

// NewBatch creates a Batch opening logs with opts.
func NewBatch(opts ...aplog.Option) *Batch {
	return &Batch{
		opts:    opts,
		readers: make(map[string]*aplog.Reader),
	}
}

// Serve processes queries from in until EOF.
func (b *Batch) Serve(in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	w := bufio.NewWriter(out)

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		path, offset, length, err := parseQuery(line)
		if err != nil {
			slog.Warn("skipping malformed context query",
				slog.String("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}

		ctx, err := b.Context(path, offset, length)
		if err != nil {
			slog.Debug("context query failed",
				slog.String("path", path),
				slog.Int64("offset", offset),
				slog.String("error", err.Error()),
			)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", path, offset, ctx); err != nil {
			return err
		}
		// Callers read answers interactively.
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Context resolves one query against the log at path.
func (b *Batch) Context(path string, offset int64, length int) (string, error) {
	r, err := b.reader(path)
	if err != nil {
		return "", err
	}
	return Context(r, offset, length)
}

func (b *Batch) reader(path string) (*aplog.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.readers[path]; ok {
		return r, nil
	}
	r, err := aplog.Open(path, b.opts...)
	if err != nil {
		return nil, err
	}
	b.readers[path] = r
	return r, nil
}

// Close closes every reader opened so far.
func (b *Batch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var first error
	for path, r := range b.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.readers, path)
	}
	return first
}

func parseQuery(line string) (string, int64, int, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("want 3 tab-separated fields, got %d", len(parts))
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("offset: %w", err)
	}
	length, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("length: %w", err)
	}
	return parts[0], offset, length, nil
}
