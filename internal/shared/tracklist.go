package shared

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	playlistURLPattern = regexp.MustCompile(`playlist/([A-Za-z0-9]+)`)
	playlistURIPattern = regexp.MustCompile(`^spotify:playlist:([A-Za-z0-9]+)$`)
	playlistIDPattern  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ParsePlaylistID extracts a playlist id from a share URL ("…/playlist/<id>?si=…"),
// a "spotify:playlist:<id>" URI, or a bare id.
func ParsePlaylistID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty playlist reference", ErrMissingArgument)
	}

	if m := playlistURIPattern.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if m := playlistURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if playlistIDPattern.MatchString(input) {
		return input, nil
	}

	return "", fmt.Errorf("%w: %q is not a playlist URL or id", ErrInvalidArgument, input)
}

// ParseTracklist reads one track name per line. Lines are trimmed and blank lines are
// discarded. Every other line is a name, including ones starting with "#". Order is preserved.
func ParseTracklist(r io.Reader) ([]string, error) {
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracklist: %w", err)
	}
	return names, nil
}

// ReadTracklist opens path and parses it with [ParseTracklist].
func ReadTracklist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracklist: %w", err)
	}
	defer f.Close()

	names, err := ParseTracklist(f)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: tracklist %s has no entries", ErrInvalidInput, path)
	}
	return names, nil
}
