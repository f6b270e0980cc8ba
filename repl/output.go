package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	"github.com/Paranoid-AF/qgen/generate"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err
}

type transcriptEntry struct {
	Questions []string             `toml:"questions"`
	Request   transcriptRequest    `toml:"request"`
	Context   []transcriptDocument `toml:"context,omitempty"`
	Error     *transcriptError     `toml:"error,omitempty"`
}

type transcriptRequest struct {
	Timestamp    time.Time `toml:"timestamp"`
	Description  string    `toml:"description"`
	NumQuestions int       `toml:"num_questions"`
	Attempts     int       `toml:"attempts,omitempty"`
}

type transcriptDocument struct {
	Source string `toml:"source"`
	Text   string `toml:"text"`
}

type transcriptError struct {
	Code    string `toml:"code"`
	Message string `toml:"message"`
}

// newEntry converts one generation outcome into a transcript entry.
func newEntry(now time.Time, description string, count int, result *generate.Result, err error) transcriptEntry {
	entry := transcriptEntry{
		Questions: []string{},
		Request: transcriptRequest{
			Timestamp:    now.Truncate(time.Second),
			Description:  description,
			NumQuestions: count,
		},
	}
	if err != nil {
		code := "generation_error"
		if errors.Is(err, generate.ErrInvalidInput) {
			code = "invalid_request"
		}
		entry.Error = &transcriptError{Code: code, Message: err.Error()}
		return entry
	}
	entry.Request.Attempts = result.Attempts
	entry.Questions = append(entry.Questions, result.Questions...)
	for _, d := range result.Documents {
		entry.Context = append(entry.Context, transcriptDocument{Source: d.Source, Text: d.Text})
	}
	return entry
}

// writeEntry writes a single TOML document to w, preceded by a separator comment.
func writeEntry(w io.Writer, entry transcriptEntry) error {
	fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60))
	if err := toml.NewEncoder(w).Encode(entry); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// writeSummary prints a short human-readable result to the tty.
func writeSummary(w io.Writer, entry transcriptEntry) {
	if entry.Error != nil {
		fmt.Fprintf(w, "error [%s]: %s\r\n\r\n", entry.Error.Code, entry.Error.Message)
		return
	}
	if len(entry.Questions) == 0 {
		fmt.Fprintf(w, "(no questions after %d attempts)\r\n\r\n", entry.Request.Attempts)
		return
	}
	for i, q := range entry.Questions {
		fmt.Fprintf(w, "  %d. %s\r\n", i+1, q)
	}
	if len(entry.Questions) < entry.Request.NumQuestions {
		fmt.Fprintf(w, "  (%d of %d requested)\r\n", len(entry.Questions), entry.Request.NumQuestions)
	}
	fmt.Fprint(w, "\r\n")
}
