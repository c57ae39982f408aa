// Package recorder saves camera frames into separate video clips under a
// numbered session folder, skipping writes when disk space runs low.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.viam.com/rdk/logging"
	"gocv.io/x/gocv"
	"golang.org/x/sys/unix"
)

const (
	defaultClipSeconds = 20
	defaultMinFreeGB   = 0.5
	defaultFPS         = 30
)

type Config struct {
	// BaseFolder holds one numbered subfolder per recording session.
	BaseFolder string
	Width      int
	Height     int
	FPS        float64
	// ClipSeconds rotates to a new clip file after this many seconds.
	ClipSeconds int
	// MinFreeGB is the free-space floor: below it frames are dropped
	// instead of written, and recording resumes once space frees up.
	MinFreeGB float64
}

func (cfg *Config) validate() error {
	if cfg.BaseFolder == "" {
		return errors.New("base folder is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS == 0 {
		cfg.FPS = defaultFPS
	}
	if cfg.ClipSeconds == 0 {
		cfg.ClipSeconds = defaultClipSeconds
	}
	if cfg.MinFreeGB == 0 {
		cfg.MinFreeGB = defaultMinFreeGB
	}
	return nil
}

// Recorder writes frames into <base>/<session>/video_<n>.mp4. Not safe for
// concurrent use; call ProcessFrame from a single frame loop.
type Recorder struct {
	cfg        Config
	logger     logging.Logger
	sessionDir string
	writer     *gocv.VideoWriter
	clipIdx    int
	clipStart  time.Time
}

func New(cfg Config, logger logging.Logger) (*Recorder, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid recorder config: %w", err)
	}
	sessionDir, err := nextSessionDir(cfg.BaseFolder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session folder: %w", err)
	}
	logger.Infof("recording into %s", sessionDir)
	return &Recorder{cfg: cfg, logger: logger, sessionDir: sessionDir}, nil
}

// nextSessionDir picks the lowest unused zero-padded session number under
// base: one higher than the largest existing numeric folder.
func nextSessionDir(base string) (string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", base, err)
	}
	maxIdx := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if idx, err := strconv.Atoi(e.Name()); err == nil && idx > maxIdx {
			maxIdx = idx
		}
	}
	return filepath.Join(base, fmt.Sprintf("%08d", maxIdx+1)), nil
}

// ProcessFrame appends one frame to the current clip, opening a new clip
// writer if needed. Low disk space drops the frame without error.
func (r *Recorder) ProcessFrame(img gocv.Mat) error {
	if img.Cols() != r.cfg.Width || img.Rows() != r.cfg.Height {
		return fmt.Errorf("frame size %dx%d does not match configured %dx%d",
			img.Cols(), img.Rows(), r.cfg.Width, r.cfg.Height)
	}

	if r.writer == nil {
		freeGB, err := freeSpaceGB(r.cfg.BaseFolder)
		if err != nil {
			return err
		}
		if freeGB < r.cfg.MinFreeGB {
			r.logger.Warnf("only %.2fGB free on disk, skipping recording", freeGB)
			return nil
		}

		name := filepath.Join(r.sessionDir, fmt.Sprintf("video_%d.mp4", r.clipIdx))
		writer, err := gocv.VideoWriterFile(name, "mp4v", r.cfg.FPS, r.cfg.Width, r.cfg.Height, true)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		r.writer = writer
		r.clipStart = time.Now()
	}

	if err := r.writer.Write(img); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if time.Since(r.clipStart) > time.Duration(r.cfg.ClipSeconds)*time.Second {
		if err := r.rotate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) rotate() error {
	if r.writer == nil {
		return nil
	}
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close clip %d: %w", r.clipIdx, err)
	}
	r.writer = nil
	r.clipIdx++
	return nil
}

func (r *Recorder) Close() error {
	return r.rotate()
}

func freeSpaceGB(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem at %s: %w", path, err)
	}
	return float64(st.Bavail) * float64(st.Bsize) / (1 << 30), nil
}
