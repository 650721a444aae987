package stores

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/citis/sapro/models"
	"github.com/citis/sapro/utils"
)

const (
	// MaxUploadSize caps a single PDF upload.
	MaxUploadSize = 50 << 20
	// PDFMediaType is the only media type accepted for uploads.
	PDFMediaType = "application/pdf"

	fallbackFilename = "upload.pdf"
	maxNameAttempts  = 1000
)

var storedPrefix = regexp.MustCompile(`^\d+-`)

// FileStore keeps uploaded PDFs in a single directory. The directory is the
// only source of truth: listings are recomputed from it on every call.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the upload directory.
func (s *FileStore) Dir() string { return s.dir }

// IsPDF reports whether a declared media type is application/pdf.
func IsPDF(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return mt == PDFMediaType
}

// Save writes r under "<epoch-millis>-<originalName>" and returns the record
// derived from the new file. Directory components of originalName are dropped;
// a name that cannot be stored unchanged is rejected.
func (s *FileStore) Save(r io.Reader, originalName, mediaType string) (models.FileRecord, error) {
	if !IsPDF(mediaType) {
		return models.FileRecord{}, ErrNotPDF
	}

	name := utils.CleanFilename(originalName, fallbackFilename)
	if !utils.ValidFilename(name) {
		return models.FileRecord{}, ErrBadFilename
	}

	out, stored, err := s.createUnique(name)
	if err != nil {
		return models.FileRecord{}, err
	}
	dst := filepath.Join(s.dir, stored)

	lr := &io.LimitedReader{R: r, N: MaxUploadSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return models.FileRecord{}, fmt.Errorf("write upload: %w", err)
	}
	if written > MaxUploadSize {
		_ = out.Close()
		_ = os.Remove(dst)
		return models.FileRecord{}, ErrTooLarge
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return models.FileRecord{}, fmt.Errorf("close upload: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("stat upload: %w", err)
	}
	return recordFromInfo(info), nil
}

// List returns one record per regular file in the directory, in directory
// enumeration order. An unreadable directory yields an empty list.
func (s *FileStore) List() []models.FileRecord {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		utils.Sugar.Warnw("uploads directory unreadable, serving empty list", "dir", s.dir, "error", err)
		return []models.FileRecord{}
	}
	records := make([]models.FileRecord, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		records = append(records, recordFromInfo(info))
	}
	return records
}

// Open returns the stored file for reading. The caller must close it.
func (s *FileStore) Open(filename string) (*os.File, models.FileRecord, error) {
	p, err := s.resolve(filename)
	if err != nil {
		return nil, models.FileRecord{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.FileRecord{}, ErrNotFound
	}
	if err != nil {
		return nil, models.FileRecord{}, fmt.Errorf("open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, models.FileRecord{}, fmt.Errorf("stat upload: %w", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, models.FileRecord{}, ErrNotFound
	}
	return f, recordFromInfo(info), nil
}

// Delete removes the stored file irreversibly.
func (s *FileStore) Delete(filename string) error {
	p, err := s.resolve(filename)
	if err != nil {
		return err
	}
	info, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// resolve maps a stored filename to its path. Anything that is not a plain
// name inside the directory is reported as not found.
func (s *FileStore) resolve(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) || filepath.Base(filename) != filename {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, filename), nil
}

// createUnique opens a new file exclusively. The millisecond prefix is bumped
// until the name is free, so equal original names never overwrite each other.
func (s *FileStore) createUnique(name string) (*os.File, string, error) {
	millis := s.now().UnixMilli()
	for i := 0; i < maxNameAttempts; i++ {
		stored := fmt.Sprintf("%d-%s", millis+int64(i), name)
		f, err := os.OpenFile(filepath.Join(s.dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, stored, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create upload: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create upload: no free name for %q", name)
}

// OriginalName strips the numeric storage prefix from a stored filename.
func OriginalName(stored string) string {
	return storedPrefix.ReplaceAllString(stored, "")
}

func recordFromInfo(info fs.FileInfo) models.FileRecord {
	return models.FileRecord{
		Filename:     info.Name(),
		OriginalName: OriginalName(info.Name()),
		Size:         info.Size(),
		UploadedAt:   models.FormatTimestamp(info.ModTime()),
	}
}
