// Package fetch downloads source videos with yt-dlp and remuxes the separate
// video and audio streams into a single container with ffmpeg.
package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"clipbot/internal/logging"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Options configures a single fetch.
type Options struct {
	URL         string
	OutputDir   string
	Quality     string
	Fragments   int
	CookiesPath string

	// YtDlpBin and FfmpegBin override the binaries resolved from PATH.
	YtDlpBin  string
	FfmpegBin string

	LogWriter io.Writer
	Progress  func(stream OutputStream, line string)
}

func (o Options) ytdlp() string {
	if strings.TrimSpace(o.YtDlpBin) != "" {
		return o.YtDlpBin
	}
	return "yt-dlp"
}

func (o Options) ffmpeg() string {
	if strings.TrimSpace(o.FfmpegBin) != "" {
		return o.FfmpegBin
	}
	return "ffmpeg"
}

// Result reports where the remuxed video landed.
type Result struct {
	Output string
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

// DependencyStatus locates the external binaries. Empty arguments mean the
// plain PATH names; configured paths are honored as-is.
func DependencyStatus(ytdlpBin, ffmpegBin string) DependencyReport {
	if strings.TrimSpace(ytdlpBin) == "" {
		ytdlpBin = "yt-dlp"
	}
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	report := DependencyReport{}
	if path, err := exec.LookPath(ytdlpBin); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath(ffmpegBin); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies(ytdlpBin, ffmpegBin string) error {
	report := DependencyStatus(ytdlpBin, ffmpegBin)
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is not installed or not on PATH")
	}
	return nil
}

// Fetch downloads the video and audio streams separately into a scratch
// directory, remuxes them into OutputDir, and cleans the scratch up. When the
// source has no separate audio stream the video file is promoted as-is.
func Fetch(ctx context.Context, opts Options) (Result, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return Result{}, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return Result{}, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	scratch, err := os.MkdirTemp(opts.OutputDir, ".fetch-*")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	logging.Fetch("downloading video stream url=%s quality=%s", opts.URL, opts.Quality)
	if err := downloadStream(ctx, scratch, selectVideoFormat(opts.Quality), "video", opts); err != nil {
		return Result{}, fmt.Errorf("video stream: %w", err)
	}
	videoPath, err := findStreamFile(scratch, ".video.")
	if err != nil {
		return Result{}, err
	}

	logging.Fetch("downloading audio stream url=%s", opts.URL)
	audioErr := downloadStream(ctx, scratch, "ba", "audio", opts)
	if audioErr != nil {
		logging.FetchError("audio stream unavailable, keeping video as-is: %v", audioErr)
		out := filepath.Join(opts.OutputDir, outputName(videoPath))
		if err := os.Rename(videoPath, out); err != nil {
			return Result{}, fmt.Errorf("promote video-only file: %w", err)
		}
		return Result{Output: out}, nil
	}
	audioPath, err := findStreamFile(scratch, ".audio.")
	if err != nil {
		return Result{}, err
	}

	out := filepath.Join(opts.OutputDir, outputName(videoPath))
	if err := remuxWith(ctx, opts.ffmpeg(), videoPath, audioPath, out); err != nil {
		return Result{}, err
	}
	logging.Fetch("fetch complete output=%s", out)
	return Result{Output: out}, nil
}

// Remux copies the video and audio streams into one container without
// re-encoding, using the ffmpeg found on PATH.
func Remux(ctx context.Context, videoPath, audioPath, out string) error {
	return remuxWith(ctx, "ffmpeg", videoPath, audioPath, out)
}

func remuxWith(ctx context.Context, ffmpegBin, videoPath, audioPath, out string) error {
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		out,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg remux failed: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func downloadStream(ctx context.Context, dir, format, kind string, opts Options) error {
	fragments := opts.Fragments
	if fragments <= 0 {
		fragments = 10
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--restrict-filenames",
		"-N", fmt.Sprintf("%d", fragments),
		"-P", dir,
		"-o", fmt.Sprintf("%%(title).200B_[%%(id)s].%s.%%(ext)s", kind),
		"-f", format,
	}
	if strings.TrimSpace(opts.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(opts.CookiesPath)
		if err != nil {
			return err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	args = append(args, opts.URL)

	return runYTDLP(ctx, opts.ytdlp(), args, opts)
}

// selectVideoFormat maps a quality tier to a yt-dlp video format selector.
func selectVideoFormat(rawQuality string) string {
	switch strings.ToLower(strings.TrimSpace(rawQuality)) {
	case "1080p", "1080", "hd":
		return "bv*[height<=1080]"
	case "720p", "720":
		return "bv*[height<=720]"
	case "480p", "480":
		return "bv*[height<=480]"
	default:
		return "bv*"
	}
}

// outputName strips the stream tag from a scratch filename and forces .mp4,
// so Some_Title_[id].video.webm becomes Some_Title_[id].mp4.
func outputName(streamPath string) string {
	base := filepath.Base(streamPath)
	if i := strings.LastIndex(base, ".video."); i >= 0 {
		base = base[:i]
	} else if i := strings.LastIndex(base, ".audio."); i >= 0 {
		base = base[:i]
	}
	return base + ".mp4"
}

func findStreamFile(dir, tag string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), tag) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no %s file produced in %s", strings.Trim(tag, "."), dir)
}

func runYTDLP(ctx context.Context, ytdlpBin string, args []string, opts Options) error {
	cmd := exec.CommandContext(ctx, ytdlpBin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if opts.LogWriter != nil {
				_, _ = io.WriteString(opts.LogWriter, line+"\n")
			}
			mu.Unlock()

			if opts.Progress != nil {
				opts.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("yt-dlp failed: %w\n%s\n%s", err, strings.TrimSpace(errBuf.String()), strings.TrimSpace(outBuf.String()))
	}
	return nil
}

// yt-dlp rewrites its progress line with bare carriage returns, so the
// scanner splits on either terminator.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
