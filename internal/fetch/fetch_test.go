package fetch

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectVideoFormat(t *testing.T) {
	cases := []struct {
		quality string
		want    string
	}{
		{"best", "bv*"},
		{"", "bv*"},
		{"1080p", "bv*[height<=1080]"},
		{"720p", "bv*[height<=720]"},
		{"480p", "bv*[height<=480]"},
		{"  HD  ", "bv*[height<=1080]"},
		{"potato", "bv*"},
	}
	for _, tc := range cases {
		if got := selectVideoFormat(tc.quality); got != tc.want {
			t.Errorf("quality %q: got %q want %q", tc.quality, got, tc.want)
		}
	}
}

func TestOutputNameStripsStreamTag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/tmp/x/My_Clip_[abc123].video.webm", "My_Clip_[abc123].mp4"},
		{"/tmp/x/My_Clip_[abc123].audio.m4a", "My_Clip_[abc123].mp4"},
		{"/tmp/x/plain.mp4", "plain.mp4.mp4"},
	}
	for _, tc := range cases {
		if got := outputName(tc.in); got != tc.want {
			t.Errorf("outputName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFindStreamFile(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip_[id].video.webm")
	if err := os.WriteFile(video, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.video.dir"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := findStreamFile(dir, ".video.")
	if err != nil {
		t.Fatalf("findStreamFile: %v", err)
	}
	if got != video {
		t.Errorf("got %q, want %q", got, video)
	}

	if _, err := findStreamFile(dir, ".audio."); err == nil {
		t.Error("expected error for missing audio file")
	}
}

func TestSplitByNewlineOrCR(t *testing.T) {
	input := "line one\rline two\nline three"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(splitByNewlineOrCR)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{"line one", "line two", "line three"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

func TestFetchRejectsMissingInputs(t *testing.T) {
	if _, err := Fetch(context.Background(), Options{OutputDir: t.TempDir()}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := Fetch(context.Background(), Options{URL: "https://example.com/v"}); err == nil {
		t.Error("expected error for empty output dir")
	}
}

func TestResolveCookiesPathMissingFile(t *testing.T) {
	if _, err := resolveCookiesPath(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing cookies file")
	}
}

func TestOptionsBinaryOverrides(t *testing.T) {
	var o Options
	if got := o.ytdlp(); got != "yt-dlp" {
		t.Errorf("default ytdlp bin = %q, want yt-dlp", got)
	}
	if got := o.ffmpeg(); got != "ffmpeg" {
		t.Errorf("default ffmpeg bin = %q, want ffmpeg", got)
	}

	o = Options{YtDlpBin: "/opt/yt-dlp", FfmpegBin: "/opt/ffmpeg"}
	if got := o.ytdlp(); got != "/opt/yt-dlp" {
		t.Errorf("ytdlp override = %q", got)
	}
	if got := o.ffmpeg(); got != "/opt/ffmpeg" {
		t.Errorf("ffmpeg override = %q", got)
	}
}

func TestCheckDependenciesMissingBinary(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent-yt-dlp")
	if err := CheckDependencies(missing, missing); err == nil {
		t.Error("expected error for nonexistent binaries")
	}
}
