// Command qgen-repl is an interactive REPL for trying out question generation.
// It reads job descriptions from the terminal, prints the generated questions
// and writes a TOML transcript to stdout.
//
// Usage:
//
//	./qgen-repl             # interactive, TOML on screen
//	./qgen-repl > log.toml  # summary on screen, TOML to file
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	qgen "github.com/Paranoid-AF/qgen"
	"github.com/Paranoid-AF/qgen/generate"
)

const prompt = "> "

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: $QGEN_CONFIG_DIR/config.toml)")
	flag.Parse()

	var (
		cfg *qgen.Config
		err error
	)
	if *configPath != "" {
		cfg, err = qgen.LoadConfigFile(*configPath)
	} else {
		cfg, err = qgen.LoadConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	engine, err := generate.NewEngineFromConfig(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	editor, err := NewEditor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer editor.Close()

	tty := editor.Tty()
	slog.SetDefault(slog.New(slog.NewTextHandler(&crlfWriter{w: tty}, &slog.HandlerOptions{Level: slog.LevelWarn})))

	fmt.Fprintf(tty, "\033[2J\033[H") // clear screen
	fmt.Fprintf(tty, "qgen repl\r\n")
	fmt.Fprintf(tty, "\r\ncommands:\r\n")
	fmt.Fprintf(tty, "  :n <count>   set number of questions (now %d)\r\n", qgen.DefaultNumQuestions)
	fmt.Fprintf(tty, "  :quit        exit\r\n\r\n")

	out := termWriter(os.Stdout)
	count := qgen.DefaultNumQuestions

	for {
		text, err := editor.ReadLine(prompt)
		if err == io.EOF || err == ErrInterrupt {
			break
		}
		if err != nil {
			fmt.Fprintf(tty, "read error: %v\r\n", err)
			break
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, ":") {
			quit, msg := runCommand(text, &count)
			if msg != "" {
				fmt.Fprintf(tty, "%s\r\n\r\n", msg)
			}
			if quit {
				break
			}
			continue
		}

		result, genErr := engine.GenerateVerbose(context.Background(), text, count)
		entry := newEntry(time.Now(), text, count, result, genErr)
		writeSummary(tty, entry)
		if err := writeEntry(out, entry); err != nil {
			fmt.Fprintf(tty, "write error: %v\r\n", err)
		}
	}
}

// runCommand applies a ":" command. It reports whether the REPL should exit
// and a message for the user.
func runCommand(text string, count *int) (quit bool, msg string) {
	fields := strings.Fields(text)
	switch fields[0] {
	case ":quit", ":q":
		return true, ""
	case ":n":
		if len(fields) != 2 {
			return false, "usage: :n <count>"
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return false, fmt.Sprintf("error: count must be a positive integer, got %q", fields[1])
		}
		*count = n
		return false, fmt.Sprintf("questions per request: %d", n)
	default:
		return false, fmt.Sprintf("unknown command %s", fields[0])
	}
}
