package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdin is shared by every prompt of a command.
var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts on stderr and reads a line without echo. When stdin is
// not a terminal the line is read as is.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(prompt, ": "), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(prompt, ": "), err)
	}
	return string(b), nil
}

// readPassphrase returns $MAPORY_PASSPHRASE or prompts for it.
func readPassphrase() (string, error) {
	if p := os.Getenv("MAPORY_PASSPHRASE"); p != "" {
		return p, nil
	}
	return readSecret("Passphrase: ")
}

// readNewPassphrase asks for a passphrase twice.
func readNewPassphrase() (string, error) {
	if p := os.Getenv("MAPORY_PASSPHRASE"); p != "" {
		return p, nil
	}
	first, err := readSecret("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	second, err := readSecret("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPassphraseMismatch
	}
	return first, nil
}
