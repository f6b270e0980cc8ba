package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Editor is a minimal line editor with history recall.
// It reads from /dev/tty so it works even when stdout is redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State
	history  []string
}

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Editor{tty: tty, oldState: old}, nil
}

// Close restores terminal state and closes the tty fd.
func (e *Editor) Close() {
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Tty returns the tty file for writing prompts/UI.
func (e *Editor) Tty() *os.File {
	return e.tty
}

// ReadLine displays the prompt and reads one line. Non-empty lines are added
// to the history available through the up and down arrows.
// Returns io.EOF when the user presses Ctrl-D on empty input.
func (e *Editor) ReadLine(prompt string) (string, error) {
	line, err := readLine(e.tty, e.tty, prompt, e.history)
	if err == nil && line != "" {
		e.history = append(e.history, line)
	}
	return line, err
}

// lineBuffer is the editable line; pos is a byte offset into buf.
type lineBuffer struct {
	buf []byte
	pos int
}

func (l *lineBuffer) set(s string) {
	l.buf = append(l.buf[:0], s...)
	l.pos = len(l.buf)
}

func (l *lineBuffer) insert(ch []byte) {
	l.buf = append(l.buf, make([]byte, len(ch))...)
	copy(l.buf[l.pos+len(ch):], l.buf[l.pos:len(l.buf)-len(ch)])
	copy(l.buf[l.pos:], ch)
	l.pos += len(ch)
}

func (l *lineBuffer) backspace() {
	if l.pos == 0 {
		return
	}
	size := prevRuneLen(l.buf, l.pos)
	copy(l.buf[l.pos-size:], l.buf[l.pos:])
	l.buf = l.buf[:len(l.buf)-size]
	l.pos -= size
}

func (l *lineBuffer) deleteForward() {
	if l.pos >= len(l.buf) {
		return
	}
	_, size := utf8.DecodeRune(l.buf[l.pos:])
	copy(l.buf[l.pos:], l.buf[l.pos+size:])
	l.buf = l.buf[:len(l.buf)-size]
}

func (l *lineBuffer) left() {
	l.pos -= prevRuneLen(l.buf, l.pos)
}

func (l *lineBuffer) right() {
	if l.pos < len(l.buf) {
		_, size := utf8.DecodeRune(l.buf[l.pos:])
		l.pos += size
	}
}

// readLine runs the key loop over r, echoing to w. history is browsed newest first.
func readLine(r io.Reader, w io.Writer, prompt string, history []string) (string, error) {
	var line lineBuffer
	histPos := len(history)
	redraw(w, prompt, &line)

	readByte := func() (byte, error) {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return b[0], nil
	}

	for {
		b, err := readByte()
		if err != nil {
			return "", err
		}

		switch b {
		case 3: // Ctrl-C
			fmt.Fprint(w, "\r\n")
			return "", ErrInterrupt

		case 4: // Ctrl-D
			if len(line.buf) == 0 {
				fmt.Fprint(w, "\r\n")
				return "", io.EOF
			}
			line.deleteForward()

		case 13, 10: // Enter
			fmt.Fprint(w, "\r\n")
			return string(line.buf), nil

		case 127, 8: // Backspace / Ctrl-H
			line.backspace()

		case 1: // Ctrl-A
			line.pos = 0

		case 5: // Ctrl-E
			line.pos = len(line.buf)

		case 21: // Ctrl-U
			line.set("")

		case 27: // escape sequence
			b1, err := readByte()
			if err != nil || b1 != '[' {
				continue
			}
			b2, err := readByte()
			if err != nil {
				continue
			}
			switch b2 {
			case 'A': // Up
				if histPos > 0 {
					histPos--
					line.set(history[histPos])
				}
			case 'B': // Down
				if histPos < len(history)-1 {
					histPos++
					line.set(history[histPos])
				} else {
					histPos = len(history)
					line.set("")
				}
			case 'D':
				line.left()
			case 'C':
				line.right()
			case 'H':
				line.pos = 0
			case 'F':
				line.pos = len(line.buf)
			case '3': // Delete: \x1b[3~
				readByte()
				line.deleteForward()
			}

		default:
			if b < 32 {
				continue
			}
			ch := []byte{b}
			if n := utf8RuneLen(b); n > 1 {
				rest := make([]byte, n-1)
				if _, err := io.ReadFull(r, rest); err != nil {
					return "", err
				}
				ch = append(ch, rest...)
			}
			line.insert(ch)
		}

		redraw(w, prompt, &line)
	}
}

// redraw clears the current line and redraws prompt + buffer with cursor.
func redraw(w io.Writer, prompt string, line *lineBuffer) {
	fmt.Fprintf(w, "\r\x1b[K%s%s", prompt, line.buf)
	if tail := utf8.RuneCount(line.buf[line.pos:]); tail > 0 {
		fmt.Fprintf(w, "\x1b[%dD", tail)
	}
}

// prevRuneLen returns the byte size of the rune before pos.
func prevRuneLen(buf []byte, pos int) int {
	if pos <= 0 {
		return 0
	}
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	return pos - i
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}
