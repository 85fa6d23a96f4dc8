package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultRetentionWeeks = 4
	defaultMaxFileSize    = 100 * 1024 * 1024
	cleanupInterval       = 6 * time.Hour
)

// RotatingLogger is an io.Writer over weekly log files named
// <prefix>-YYYY-Www.log. A week's file that grows past the size limit
// continues in <prefix>-YYYY-Www_NN.log.
type RotatingLogger struct {
	mu          sync.Mutex
	dir         string
	prefix      string
	retention   int
	maxFileSize int64

	file *os.File
	week string
	seq  int
	size int64
	now  func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotatingLogger opens the current week's file under dir and starts the
// background cleanup of files older than retentionWeeks.
func NewRotatingLogger(dir, prefix string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if dir == "" {
		dir = "logs"
	}
	if retentionWeeks <= 0 {
		retentionWeeks = defaultRetentionWeeks
	}
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RotatingLogger{
		dir:         dir,
		prefix:      prefix,
		retention:   retentionWeeks,
		maxFileSize: maxFileSize,
		now:         time.Now,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	rl.mu.Lock()
	err := rl.openLocked(weekKey(rl.now()))
	rl.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	rl.cleanupOldLogs()
	go rl.cleanupLoop(ctx)
	return rl, nil
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rl *RotatingLogger) fileName(week string, seq int) string {
	if seq == 0 {
		return filepath.Join(rl.dir, fmt.Sprintf("%s-%s.log", rl.prefix, week))
	}
	return filepath.Join(rl.dir, fmt.Sprintf("%s-%s_%02d.log", rl.prefix, week, seq))
}

// openLocked opens the newest file of the week, moving to the next sequence
// number when that file is already full.
func (rl *RotatingLogger) openLocked(week string) error {
	seq := 0
	for {
		info, err := os.Stat(rl.fileName(week, seq+1))
		if err != nil || info == nil {
			break
		}
		seq++
	}
	if info, err := os.Stat(rl.fileName(week, seq)); err == nil && info.Size() >= rl.maxFileSize {
		seq++
	}
	return rl.openSeqLocked(week, seq)
}

func (rl *RotatingLogger) openSeqLocked(week string, seq int) error {
	name := rl.fileName(week, seq)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file %s: %w", name, err)
	}
	if rl.file != nil {
		rl.file.Close()
	}
	rl.file = f
	rl.week = week
	rl.seq = seq
	rl.size = info.Size()
	return nil
}

func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file == nil {
		return 0, os.ErrClosed
	}
	if week := weekKey(rl.now()); week != rl.week {
		if err := rl.openSeqLocked(week, 0); err != nil {
			return 0, err
		}
	} else if rl.size > 0 && rl.size+int64(len(p)) > rl.maxFileSize {
		if err := rl.openSeqLocked(week, rl.seq+1); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// Close stops the cleanup loop and closes the current file.
func (rl *RotatingLogger) Close() error {
	rl.cancel()
	<-rl.done

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

func (rl *RotatingLogger) cleanupLoop(ctx context.Context) {
	defer close(rl.done)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanupOldLogs()
		}
	}
}

// cleanupOldLogs removes this logger's files whose week is outside the
// retention window. The file currently written to is never removed.
func (rl *RotatingLogger) cleanupOldLogs() {
	matches, err := filepath.Glob(filepath.Join(rl.dir, rl.prefix+"-*.log"))
	if err != nil {
		return
	}
	sort.Strings(matches)

	cutoff := weekKey(rl.now().AddDate(0, 0, -7*rl.retention))

	rl.mu.Lock()
	var current string
	if rl.file != nil {
		current = rl.file.Name()
	}
	rl.mu.Unlock()

	for _, name := range matches {
		if name == current {
			continue
		}
		week, ok := rl.weekOf(filepath.Base(name))
		if !ok || week >= cutoff {
			continue
		}
		if err := os.Remove(name); err == nil {
			Debug("Removed old log file", "file", name)
		}
	}
}

// weekOf extracts the YYYY-Www key from a file name. Keys sort
// chronologically as strings.
func (rl *RotatingLogger) weekOf(base string) (string, bool) {
	rest, ok := strings.CutPrefix(base, rl.prefix+"-")
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, ".log")
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		rest = rest[:i]
	}
	var year, week int
	if _, err := fmt.Sscanf(rest, "%4d-W%02d", &year, &week); err != nil {
		return "", false
	}
	return fmt.Sprintf("%d-W%02d", year, week), true
}
