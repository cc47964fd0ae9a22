package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// backupStamp is appended to rotated file names. It sorts lexically in time
// order and the microseconds keep rapid rotations apart.
const backupStamp = "20060102-150405.000000"

// RotatingFile is an append-only log file that is renamed aside once it
// would grow past Rotation.MaxSizeMB. Old backups are pruned in the
// background.
type RotatingFile struct {
	rot Rotation

	mu   sync.Mutex
	f    *os.File
	size int64

	pruning sync.WaitGroup
}

// OpenRotatingFile opens or creates rot.Path for appending.
func OpenRotatingFile(rot Rotation) (*RotatingFile, error) {
	if rot.Path == "" {
		return nil, errors.New("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(rot.Path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	r := &RotatingFile{rot: rot}
	if err := r.reopen(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) reopen() error {
	f, err := os.OpenFile(r.rot.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f, r.size = f, st.Size()
	return nil
}

func (r *RotatingFile) limit() int64 {
	return r.rot.MaxSizeMB << 20
}

// Write appends p, rotating first when p would overflow a non-empty file.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		if err := r.reopen(); err != nil {
			return 0, err
		}
	}
	if r.limit() > 0 && r.size > 0 && r.size+int64(len(p)) > r.limit() {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) stem() (dir, base, ext string) {
	dir = filepath.Dir(r.rot.Path)
	name := filepath.Base(r.rot.Path)
	ext = filepath.Ext(name)
	return dir, strings.TrimSuffix(name, ext), ext
}

func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	r.f = nil

	dir, base, ext := r.stem()
	backup := filepath.Join(dir, base+"-"+time.Now().Format(backupStamp)+ext)
	if err := os.Rename(r.rot.Path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	if err := r.reopen(); err != nil {
		return err
	}

	r.pruning.Add(1)
	go func() {
		defer r.pruning.Done()
		if r.rot.Compress {
			gzipFile(backup)
		}
		r.prune(time.Now())
	}()
	return nil
}

// Backups lists rotated files, oldest first.
func (r *RotatingFile) Backups() ([]string, error) {
	dir, base, ext := r.stem()
	matches, err := filepath.Glob(filepath.Join(dir, base+"-*"+ext+"*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// prune keeps the newest MaxBackups backups and drops any older than
// MaxAgeDays. A zero limit disables that rule.
func (r *RotatingFile) prune(now time.Time) {
	backups, err := r.Backups()
	if err != nil {
		return
	}

	if n := r.rot.MaxBackups; n > 0 && len(backups) > n {
		for _, p := range backups[:len(backups)-n] {
			os.Remove(p)
		}
		backups = backups[len(backups)-n:]
	}

	if r.rot.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -r.rot.MaxAgeDays)
		for _, p := range backups {
			if st, err := os.Stat(p); err == nil && st.ModTime().Before(cutoff) {
				os.Remove(p)
			}
		}
	}
}

// gzipFile replaces path with path.gz. On failure the original is kept.
func gzipFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(path)

	_, err = io.Copy(zw, in)
	err = errors.Join(err, zw.Close(), out.Close())
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// Sync flushes the current file to disk.
func (r *RotatingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	return r.f.Sync()
}

// Close waits for pending pruning and closes the current file.
func (r *RotatingFile) Close() error {
	r.pruning.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
