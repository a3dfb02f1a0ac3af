package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/usestring/aptrace/internal/resolve"
	"github.com/usestring/aptrace/pkg/aplog"
)

const scriptPreamble = `#!/usr/bin/env python3
# -*- coding: utf-8 -*-
try:
    from termcolor import colored
except ImportError:
    def colored(text, color=None, on_color=None, attrs=None):
        return text
`

// pyBytes renders b as a Python bytes literal.
func pyBytes(b []byte) string {
	return "b" + resolve.Quote(b)
}

// peerIndex is the slot of a direction in the generated peers table.
func peerIndex(d aplog.Direction) int {
	if d == aplog.ClientToServer {
		return 1
	}
	return 0
}

// naiveReplay records every payload and prints them back in order. The
// script performs no network I/O.
type naiveReplay struct {
	w *bufio.Writer
}

func newNaiveReplay(sink io.Writer) *naiveReplay {
	return &naiveReplay{w: bufio.NewWriter(sink)}
}

func (n *naiveReplay) Begin(StreamInfo) error {
	n.w.WriteString(scriptPreamble)
	_, err := n.w.WriteString("peers = [{}, {}]\nseq = []\nidx = 0\n")
	return err
}

func (n *naiveReplay) Emit(e Emission) error {
	side := peerIndex(e.Direction)
	fmt.Fprintf(n.w, "idx += 1\n")
	fmt.Fprintf(n.w, "peers[%d][idx] = %s\n", side, pyBytes(e.Payload))
	_, err := fmt.Fprintf(n.w, "seq.append((%d, idx))\n", side)
	return err
}

func (n *naiveReplay) End() error {
	n.w.WriteString("colors = ['cyan', 'yellow']\n")
	n.w.WriteString("for s, o in seq:\n    print(colored(repr(peers[s][o]), colors[s]))\n")
	return n.w.Flush()
}

const diffPreamble = `import difflib
import socket
import sys

HOST = sys.argv[1] if len(sys.argv) > 1 else '127.0.0.1'
PORT = int(sys.argv[2]) if len(sys.argv) > 2 else 4000


def recv_expected(sock, expected):
    got = b''
    while len(got) < len(expected):
        try:
            chunk = sock.recv(len(expected) - len(got))
        except (socket.timeout, OSError):
            break
        if not chunk:
            break
        got += chunk
    return got


def show_diff(expected, got):
    if expected == got:
        print(colored(repr(got), 'yellow'))
        return
    a = expected.decode('latin-1').splitlines(True)
    b = got.decode('latin-1').splitlines(True)
    for line in difflib.ndiff(a, b):
        tag, text = line[:2], line[2:]
        if tag == '+ ':
            print(colored('+ ' + repr(text.encode('latin-1')), 'green'))
        elif tag == '- ':
            print(colored('- ' + repr(text.encode('latin-1')), 'red'))
        elif tag == '  ':
            print('  ' + repr(text.encode('latin-1')))


def send(sock, data):
    print(colored(repr(data), 'cyan'))
    try:
        sock.sendall(data)
    except OSError as e:
        print(colored('send failed: %s' % e, 'red'))


def drain(sock):
    while True:
        try:
            tail = sock.recv(65536)
        except (socket.timeout, OSError):
            return
        if not tail:
            return
        print(colored('+ ' + repr(tail), 'magenta'))


`

// diffReplay emits a script that replays client packets against a live
// target and diffs each server reply against the captured one.
//
// The script depends on payloads and the read timeout only, so two
// connections carrying the same packets produce byte-identical scripts.
type diffReplay struct {
	timeout string
	w       *bufio.Writer
}

func newDiffReplay(opts Options, sink io.Writer) *diffReplay {
	return &diffReplay{
		timeout: strconv.FormatFloat(opts.ReadTimeout.Seconds(), 'f', -1, 64),
		w:       bufio.NewWriter(sink),
	}
}

func (d *diffReplay) Begin(StreamInfo) error {
	d.w.WriteString(scriptPreamble)
	d.w.WriteString(diffPreamble)
	_, err := fmt.Fprintf(d.w, "s = socket.create_connection((HOST, PORT), timeout=%s)\n", d.timeout)
	return err
}

func (d *diffReplay) Emit(e Emission) error {
	lit := pyBytes(e.Payload)
	if e.Direction == aplog.ClientToServer {
		_, err := fmt.Fprintf(d.w, "send(s, %s)\n", lit)
		return err
	}
	_, err := fmt.Fprintf(d.w, "show_diff(%s, recv_expected(s, %s))\n", lit, lit)
	return err
}

func (d *diffReplay) End() error {
	d.w.WriteString("drain(s)\ns.close()\n")
	return d.w.Flush()
}
