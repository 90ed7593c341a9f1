package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// confirmDownload applies the download gate: --no-download wins, then
// --yes, then an interactive prompt when stdin is a terminal. Without a
// terminal and without --yes, downloads are skipped.
func confirmDownload(n int, logger *slog.Logger) bool {
	switch {
	case noDownload:
		return false
	case assumeYes:
		return true
	case !term.IsTerminal(int(os.Stdin.Fd())):
		logger.Info("stdin is not a terminal, skipping downloads (use --yes to force)")
		return false
	}
	return askYesNo(os.Stdin, os.Stdout, fmt.Sprintf("Download %d images? [y/N]: ", n))
}

// askYesNo prints question and reads one line. Only y or yes accepts.
func askYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
