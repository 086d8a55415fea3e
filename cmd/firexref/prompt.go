package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/firms-osm-xref/internal/credentials"
	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// prompter reads answers from an interactive terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// text asks until a non-empty answer is given.
func (p *prompter) text(label string) (string, error) {
	for {
		fmt.Fprint(p.out, label)
		line, err := p.in.ReadString('\n')
		value := strings.TrimSpace(line)
		if value != "" {
			return value, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("no answer for %q: input closed", strings.TrimSpace(label))
			}
			return "", err
		}
		fmt.Fprintln(p.out, "input cannot be empty. please try again.")
	}
}

// date asks until a strict YYYY-MM-DD date is given.
func (p *prompter) date(label string) (string, error) {
	for {
		value, err := p.text(label)
		if err != nil {
			return "", err
		}
		if _, err := domain.ParseDate(value); err == nil {
			return value, nil
		}
		fmt.Fprintln(p.out, "Invalid date format. Please enter date as YYYY-MM-DD.")
	}
}

// keySource loads and stores the FIRMS API key.
type keySource interface {
	Load() (string, error)
	Save(key string) error
	Path() string
}

// resolveAPIKey returns the key from the override, the store, or the
// prompter, in that order. A prompted key is saved for later runs; failing
// to save only warns.
func resolveAPIKey(override string, store keySource, p *prompter, logger *slog.Logger) (string, error) {
	if key := strings.TrimSpace(override); key != "" {
		return key, nil
	}

	key, err := store.Load()
	switch {
	case err == nil:
		logger.Debug("using stored api key", "path", store.Path())
		return key, nil
	case errors.Is(err, credentials.ErrNotFound):
	default:
		logger.Warn("could not read api key file", "path", store.Path(), "error", err)
	}

	key, err = p.text("your firms API key: ")
	if err != nil {
		return "", err
	}
	if err := store.Save(key); err != nil {
		logger.Warn("could not save api key file", "path", store.Path(), "error", err)
	} else {
		logger.Info("api key saved", "path", store.Path())
	}
	return key, nil
}
