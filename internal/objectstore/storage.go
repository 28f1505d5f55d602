package objectstore

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound    = errors.New("object_not_found")
	ErrEmptyObject = errors.New("object_empty")
)

// Storage keeps uploaded bill documents. Only the returned path is recorded
// on the bill.
type Storage interface {
	PutObject(ctx context.Context, data []byte, meta Metadata) (Object, error)
	GetObject(ctx context.Context, storagePath string) ([]byte, error)
}

type Metadata struct {
	BillID      string
	Filename    string
	ContentType string
}

type Object struct {
	Path string
	Size int64
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectKey builds a unique key under prefix grouped by bill.
func objectKey(prefix string, meta Metadata) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(strings.TrimSpace(meta.Filename)), "_")
	if name == "" || name == "." || name == "_" {
		name = "document"
	}
	bill := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(meta.BillID), "_")
	if bill == "" {
		bill = "unassigned"
	}
	return path.Join(strings.Trim(prefix, "/"), bill, ulid.Make().String()+"-"+name)
}
