package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"recoledger/internal/tracker"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 120

func terminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// printPending writes one line per record, cut to width columns.
func printPending(w io.Writer, records []tracker.ChangedFile, width int) {
	header := fmt.Sprintf("%-8s  %-10s  %-8s  %-19s  %s", "ID", "FILE", "REASON", "CHANGED", "USER")
	fmt.Fprintln(w, fit(header, width))
	for _, r := range records {
		line := fmt.Sprintf("%-8d  %-10d  %-8s  %-19s  %s",
			r.ID, r.FileID, r.Reason, r.ChangedAt.Format("2006-01-02 15:04:05"), r.UserID)
		fmt.Fprintln(w, fit(line, width))
	}
	fmt.Fprintf(w, "%d pending\n", len(records))
}

func fit(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// readPassphrase prompts on a terminal without echo. When stdin is not a
// terminal the first line of stdin is used, so scripts can pipe it in.
func readPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(again) != string(pass) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(pass), nil
}
