package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"account_service/internal/model"
)

// Form field names for identity documents. Each field carries at most one file.
const (
	FieldPassport = "passport"
	FieldFront    = "front"
	FieldBack     = "back"
)

// Store persists uploaded identity documents under a fixed directory and
// yields the generated filenames recorded against the user row.
//
// TODO: decide on a max file size and content-type allow-list for identity
// documents; uploads are currently accepted as-is.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory files are stored under.
func (s *Store) Dir() string {
	return s.dir
}

// SaveDocuments stores the first file of each known document field from the
// multipart form. Absent fields yield empty filenames. A nil form is treated
// as a request without files.
func (s *Store) SaveDocuments(form *multipart.Form) (model.DocumentFilenames, error) {
	var docs model.DocumentFilenames
	if form == nil {
		return docs, nil
	}

	targets := []struct {
		field string
		dst   *string
	}{
		{FieldPassport, &docs.Passport},
		{FieldFront, &docs.IDImageFront},
		{FieldBack, &docs.IDImageBack},
	}

	for _, t := range targets {
		headers := form.File[t.field]
		if len(headers) == 0 {
			continue
		}
		name, err := s.saveFile(t.field, headers[0])
		if err != nil {
			return model.DocumentFilenames{}, err
		}
		*t.dst = name
	}
	return docs, nil
}

// saveFile writes one uploaded file to disk under a collision-resistant
// generated name: <unix-nanos>-<field><original extension>.
func (s *Store) saveFile(field string, fileHeader *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(fileHeader.Filename)
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), field, ext)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file on server: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return name, nil
}
