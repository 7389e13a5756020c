// Package music manages the local music directory used by the play-music
// intent: periodic rescans, fuzzy title matching, and decoding files into
// pipeline audio frames.
package music

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/voxhive/voxhive/internal/textutil"
	"github.com/voxhive/voxhive/pkg/audio"
)

// Defaults applied when the config leaves fields empty.
var DefaultExtensions = []string{".mp3", ".wav", ".p3"}

const (
	DefaultRefresh = 60 * time.Second

	// matchThreshold is the minimum LCS ratio for a requested title to count
	// as a match; below it a random track is played instead.
	matchThreshold = 0.4
)

// Library scans a directory for playable files and answers fuzzy title
// queries. Safe for concurrent use; the scan refreshes lazily when stale.
type Library struct {
	dir     string
	exts    map[string]bool
	refresh time.Duration

	mu       sync.Mutex
	files    []string // relative file names, sorted
	lastScan time.Time
}

// NewLibrary creates a library over dir. Empty exts/refresh fall back to the
// package defaults.
func NewLibrary(dir string, exts []string, refresh time.Duration) *Library {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}
	return &Library{dir: dir, exts: extSet, refresh: refresh}
}

// Files returns the current file list, rescanning the directory when the
// last scan is older than the refresh interval.
func (l *Library) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastScan) >= l.refresh {
		l.scan()
	}
	out := make([]string, len(l.files))
	copy(out, l.files)
	return out
}

// scan walks the directory. Must be called with l.mu held.
func (l *Library) scan() {
	l.lastScan = time.Now()
	l.files = l.files[:0]

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		slog.Warn("music: scan failed", "dir", l.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if l.exts[strings.ToLower(filepath.Ext(e.Name()))] {
			l.files = append(l.files, e.Name())
		}
	}
	sort.Strings(l.files)
}

// Match finds the best file for a requested title. The primary metric is the
// LCS ratio against the file name without extension; ties break on
// Jaro-Winkler similarity. A best ratio below the threshold, or an empty
// request, selects a uniformly random track. ok is false only when the
// library is empty.
func (l *Library) Match(name string) (file string, ok bool) {
	files := l.Files()
	if len(files) == 0 {
		return "", false
	}
	if name == "" {
		return files[rand.IntN(len(files))], true
	}

	best := ""
	bestRatio := 0.0
	bestJW := 0.0
	for _, f := range files {
		title := strings.TrimSuffix(f, filepath.Ext(f))
		ratio := textutil.LCSRatio(name, title)
		jw := matchr.JaroWinkler(name, title, false)
		if ratio > bestRatio || (ratio == bestRatio && jw > bestJW) {
			best, bestRatio, bestJW = f, ratio, jw
		}
	}
	if bestRatio < matchThreshold {
		return files[rand.IntN(len(files))], true
	}
	return best, true
}

// LoadFrames decodes a library file into 60 ms Opus frames ready for the
// emitter. .p3 files are served verbatim; .wav files are resampled and
// re-encoded. There is no mp3 decoder; .mp3 files are listed for matching
// but fail to load.
func (l *Library) LoadFrames(file string) ([][]byte, error) {
	path := filepath.Join(l.dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("music: read %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".p3":
		return audio.DecodeP3(data)
	case ".wav":
		pcm, rate, channels, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, err
		}
		if channels == 2 {
			pcm = audio.StereoToMono(pcm)
		}
		pcm = audio.ResampleMono16(pcm, rate, audio.SampleRate)
		enc, err := audio.NewEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(pcm)
	default:
		return nil, fmt.Errorf("music: no decoder for %q", filepath.Ext(file))
	}
}

// Announcement returns the spoken introduction for a track.
func Announcement(file string) string {
	return "正在播放" + file
}
