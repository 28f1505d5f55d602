package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/smallbiznis/billflow/internal/bill/domain"
	"github.com/smallbiznis/billflow/internal/objectstore"
)

var ErrStorageUnavailable = errors.New("storage_unavailable")

type UploadRequest struct {
	BillID      string
	Filename    string
	ContentType string
	Data        []byte
}

// AttachUpload stores the document and attaches it to the bill. The bill is
// checked first so documents for unknown or finished bills are not stored.
// A stored object whose attach then fails is left behind.
func (d *Dispatcher) AttachUpload(ctx context.Context, req UploadRequest) (Result, error) {
	if d.storage == nil {
		return Result{}, ErrStorageUnavailable
	}
	if len(req.Data) == 0 {
		return Result{}, fmt.Errorf("%w: empty upload", domain.ErrInvalidFile)
	}

	state, err := d.Load(ctx, req.BillID)
	if err != nil {
		return Result{}, err
	}
	if !state.Exists() {
		return Result{}, domain.ErrNotFound
	}
	if state.Status.Terminal() {
		return Result{}, fmt.Errorf("%w: bill is %s", domain.ErrBillTerminal, state.Status)
	}
	if state.Status != domain.StatusCreated {
		return Result{}, fmt.Errorf("%w: requires %s, bill is %s", domain.ErrInvalidStatus, domain.StatusCreated, state.Status)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(req.Data).String()
	}

	obj, err := d.storage.PutObject(ctx, req.Data, objectstore.Metadata{
		BillID:      req.BillID,
		Filename:    req.Filename,
		ContentType: contentType,
	})
	if err != nil {
		return Result{}, fmt.Errorf("store document: %w", err)
	}

	sum := sha256.Sum256(req.Data)
	return d.Dispatch(ctx, domain.AttachFile{
		BillID:      req.BillID,
		Filename:    req.Filename,
		ContentType: contentType,
		FileSize:    obj.Size,
		StoragePath: obj.Path,
		Checksum:    hex.EncodeToString(sum[:]),
	})
}
