package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const (
	fileBufferSize = 64 * 1024
	archiveTimeout = 2 * time.Minute
)

// Archiver receives each finished file.
type Archiver interface {
	Archive(ctx context.Context, format, path string) error
}

type FileOptions struct {
	Directory string
	Hourly    bool
	Compress  bool
	Archiver  Archiver
}

type openFile struct {
	format string
	start  time.Time
	end    time.Time
	path   string
	file   *os.File
	buf    *bufio.Writer
}

// FileSink appends each line to the file for its format and its event's
// local date (or hour).
type FileSink struct {
	opts     FileOptions
	logger   *zap.Logger
	mu       sync.Mutex
	open     map[string]*openFile
	finished []string
	closed   bool
}

func NewFileSink(opts FileOptions, logger *zap.Logger) (*FileSink, error) {
	if opts.Directory == "" {
		return nil, errors.New("file sink: output directory is required")
	}
	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{
		opts:   opts,
		logger: logger,
		open:   make(map[string]*openFile),
	}, nil
}

// FileName is the base name used for a format and timestamp.
func FileName(format string, t time.Time, hourly bool) string {
	if hourly {
		return fmt.Sprintf("%s_%s_%02d.log", format, dayKey(t), t.Hour())
	}
	return fmt.Sprintf("%s_%s.log", format, dayKey(t))
}

func (s *FileSink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	name := FileName(e.Format, e.Timestamp, s.opts.Hourly)
	f, ok := s.open[name]
	if !ok {
		var err error
		f, err = s.openFile(name, e.Format, e.Timestamp)
		if err != nil {
			return err
		}
		s.open[name] = f
	}

	if _, err := f.buf.Write(e.Line); err != nil {
		return fmt.Errorf("file sink: write %s: %w", f.path, err)
	}
	return nil
}

func (s *FileSink) openFile(name, format string, ts time.Time) (*openFile, error) {
	dir := filepath.Join(s.opts.Directory, format)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", path, err)
	}

	start := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	end := start.AddDate(0, 0, 1)
	if s.opts.Hourly {
		start = ts.Truncate(time.Hour)
		end = start.Add(time.Hour)
	}

	s.logger.Debug("Opened log file", zap.String("path", path))
	return &openFile{
		format: format,
		start:  start,
		end:    end,
		path:   path,
		file:   file,
		buf:    bufio.NewWriterSize(file, fileBufferSize),
	}, nil
}

// Rotate finishes every file whose period ended at or before the horizon.
func (s *FileSink) Rotate(before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, name := range s.sortedNames() {
		f := s.open[name]
		if f.end.After(before) {
			continue
		}
		delete(s.open, name)
		if err := s.finish(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush writes buffered lines of every open file to disk.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.sortedNames() {
		f := s.open[name]
		if err := f.buf.Flush(); err != nil {
			return fmt.Errorf("file sink: flush %s: %w", f.path, err)
		}
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, name := range s.sortedNames() {
		if err := s.finish(s.open[name]); err != nil {
			errs = append(errs, err)
		}
	}
	s.open = nil
	return errors.Join(errs...)
}

// Finished lists the final paths of every file closed so far, in close order.
func (s *FileSink) Finished() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...)
}

func (s *FileSink) sortedNames() []string {
	names := make([]string, 0, len(s.open))
	for name := range s.open {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *FileSink) finish(f *openFile) error {
	if err := f.buf.Flush(); err != nil {
		f.file.Close()
		return fmt.Errorf("file sink: flush %s: %w", f.path, err)
	}
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("file sink: close %s: %w", f.path, err)
	}

	path := f.path
	if s.opts.Compress {
		gz, err := compressFile(path)
		if err != nil {
			return fmt.Errorf("file sink: compress %s: %w", path, err)
		}
		path = gz
	}
	s.finished = append(s.finished, path)
	s.logger.Info("Finished log file", zap.String("path", path), zap.String("format", f.format))

	if s.opts.Archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.opts.Archiver.Archive(ctx, f.format, path); err != nil {
			return fmt.Errorf("file sink: archive %s: %w", path, err)
		}
	}
	return nil
}

// compressFile appends path as a new gzip member of path.gz and removes the
// plain file. Readers see the concatenation of every member.
func compressFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.OpenFile(gzPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return gzPath, os.Remove(path)
}
