package render

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"strconv"
	"time"

	"github.com/usestring/aptrace/pkg/aplog"
)

// literalRenderer emits a Go source file with one string constant per
// packet, named by direction and a per-direction counter.
type literalRenderer struct {
	pkg  string
	w    io.Writer
	buf  bytes.Buffer
	next [2]int
}

func newLiteral(opts Options, sink io.Writer) *literalRenderer {
	return &literalRenderer{pkg: opts.Package, w: sink}
}

func (l *literalRenderer) Begin(info StreamInfo) error {
	h := info.Header
	client, server := h.Endpoints(aplog.ClientToServer)
	fmt.Fprintf(&l.buf, "// Code generated by aptrace. DO NOT EDIT.\n\n")
	fmt.Fprintf(&l.buf, "// Package %s holds the payloads of connection %d,\n", l.pkg, h.Index)
	fmt.Fprintf(&l.buf, "// %s -> %s captured %s.\n", client, server, h.Time().Format(time.RFC3339))
	fmt.Fprintf(&l.buf, "package %s\n\nconst (\n", l.pkg)
	return nil
}

func (l *literalRenderer) Emit(e Emission) error {
	name := "Server"
	if e.Direction == aplog.ClientToServer {
		name = "Client"
	}
	n := l.next[e.Direction]
	l.next[e.Direction]++
	fmt.Fprintf(&l.buf, "\t%s%d = %s\n", name, n, strconv.Quote(string(e.Payload)))
	return nil
}

func (l *literalRenderer) End() error {
	l.buf.WriteString(")\n")
	src, err := format.Source(l.buf.Bytes())
	if err != nil {
		return fmt.Errorf("formatting generated source: %w", err)
	}
	_, err = l.w.Write(src)
	return err
}
