package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const passphraseEnv = "LUMENVAULT_PASSPHRASE"

var stdinReader = bufio.NewReader(os.Stdin)

// readSecret reads a line without echo when stdin is a terminal
func readSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(raw), nil
	}

	line, err := stdinReader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// passphrase prompts once, or reads LUMENVAULT_PASSPHRASE when set
func passphrase(label string) (string, error) {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return p, nil
	}
	return readSecret(label)
}

// newPassphrase asks twice and requires both entries to match
func newPassphrase() (string, error) {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return p, nil
	}
	first, err := readSecret("New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// confirm asks a yes/no question on the terminal. It is also the presence
// check behind the device key.
func confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)

	answer := make(chan string, 1)
	failed := make(chan error, 1)
	go func() {
		line, err := stdinReader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			failed <- err
			return
		}
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-failed:
		return false, err
	case a := <-answer:
		return a == "y" || a == "yes", nil
	}
}
