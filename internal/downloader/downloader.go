// package downloader fetches audio for tracks the catalog could not match
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const (
	DefaultAudioFormat  = "mp3"
	DefaultSearchPrefix = "ytsearch1:"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	separators = strings.NewReplacer("/", "-", `\`, "-")
)

// Downloader saves audio for a free-text track name and returns the local file path.
type Downloader interface {
	Download(ctx context.Context, name string) (string, error)
}

// Request is a single yt-dlp invocation.
type Request struct {
	// Target is the yt-dlp input, e.g. "ytsearch1:Energy 52 Cafe Del Mar".
	Target string
	// OutputTemplate is passed to -o. The extension placeholder lets yt-dlp rename after extraction.
	OutputTemplate string
	AudioFormat    string
}

// RunFunc executes a [Request].
type RunFunc func(ctx context.Context, req Request) error

// Opts configures a [YTDLP].
type Opts struct {
	Directory    string
	AudioFormat  string
	SearchPrefix string
	Logger       *log.Logger
	// Run replaces the go-ytdlp invocation. Nil runs yt-dlp.
	Run RunFunc
}

// YTDLP downloads the first YouTube search result for a track name as audio.
type YTDLP struct {
	dir    string
	format string
	prefix string
	logger *log.Logger
	run    RunFunc
}

// New creates a [YTDLP] with defaults for any empty option.
func New(opts Opts) *YTDLP {
	if opts.Directory == "" {
		opts.Directory = "."
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = DefaultAudioFormat
	}
	if opts.SearchPrefix == "" {
		opts.SearchPrefix = DefaultSearchPrefix
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Run == nil {
		opts.Run = runYTDLP
	}

	return &YTDLP{
		dir:    opts.Directory,
		format: strings.TrimPrefix(opts.AudioFormat, "."),
		prefix: opts.SearchPrefix,
		logger: opts.Logger,
		run:    opts.Run,
	}
}

// Filename returns the file name used for name: whitespace runs become underscores and path separators become
// dashes, followed by the audio extension.
func Filename(name, format string) string {
	stem := whitespace.ReplaceAllString(strings.TrimSpace(name), "_")
	stem = separators.Replace(stem)
	return stem + "." + format
}

// Path returns where the audio for name will be written.
func (y *YTDLP) Path(name string) string {
	return filepath.Join(y.dir, Filename(name, y.format))
}

// Download runs yt-dlp for name and returns the resulting file path.
func (y *YTDLP) Download(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %w: empty track name", shared.ErrDownloadFailed, shared.ErrInvalidArgument)
	}

	if err := os.MkdirAll(y.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory: %w", shared.ErrDownloadFailed, err)
	}

	path := y.Path(name)
	req := Request{
		Target:         y.prefix + name,
		OutputTemplate: strings.TrimSuffix(path, "."+y.format) + ".%(ext)s",
		AudioFormat:    y.format,
	}

	y.logger.Debug("starting download", "track", name, "output", path)

	if err := y.run(ctx, req); err != nil {
		return "", fmt.Errorf("%w: %s: %w", shared.ErrDownloadFailed, name, err)
	}

	y.logger.Info("downloaded track", "track", name, "path", path)
	return path, nil
}

func runYTDLP(ctx context.Context, req Request) error {
	cmd := ytdlp.New().
		ExtractAudio().
		AudioFormat(req.AudioFormat).
		AudioQuality("0").
		NoPlaylist().
		Output(req.OutputTemplate)

	result, err := cmd.Run(ctx, req.Target)
	if err != nil {
		if result != nil && result.Stderr != "" {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return err
	}
	return nil
}
