package controllers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
const multipartOverhead = 1 << 20

// FileController handles PDF uploads and downloads.
type FileController struct {
	store *stores.FileStore
}

// NewFileController creates a new FileController instance.
func NewFileController(store *stores.FileStore) *FileController {
	return &FileController{store: store}
}

// UploadPDF accepts a multipart upload in the "pdf" field.
func (f *FileController) UploadPDF(ctx *gin.Context) {
	const limit = stores.MaxUploadSize + multipartOverhead
	if ctx.Request.ContentLength > limit {
		utils.Error(ctx, http.StatusBadRequest, validationMessage(stores.ErrTooLarge))
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)

	file, header, err := ctx.Request.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusBadRequest, validationMessage(stores.ErrTooLarge))
			return
		}
		utils.Error(ctx, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > stores.MaxUploadSize {
		utils.Error(ctx, http.StatusBadRequest, validationMessage(stores.ErrTooLarge))
		return
	}

	record, err := f.store.Save(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		respondStoreError(ctx, err, "save upload", "file not found")
		return
	}

	utils.Sugar.Infow("file uploaded", "filename", record.Filename, "size", record.Size)
	utils.OK(ctx, gin.H{"file": record})
}

// ListFiles returns the records derived from the upload directory.
func (f *FileController) ListFiles(ctx *gin.Context) {
	utils.JSON(ctx, f.store.List())
}

// GetFile streams the stored bytes unchanged.
func (f *FileController) GetFile(ctx *gin.Context) {
	file, record, err := f.store.Open(ctx.Param("filename"))
	if err != nil {
		respondStoreError(ctx, err, "open upload", "file not found")
		return
	}
	defer file.Close()

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": record.OriginalName})
	extra := map[string]string{}
	if disposition != "" {
		extra["Content-Disposition"] = disposition
	}
	ctx.DataFromReader(http.StatusOK, record.Size, stores.PDFMediaType, file, extra)
}

// DeleteFile removes a stored file.
func (f *FileController) DeleteFile(ctx *gin.Context) {
	if err := f.store.Delete(ctx.Param("filename")); err != nil {
		respondStoreError(ctx, err, "delete upload", "file not found")
		return
	}
	utils.Sugar.Infow("file deleted", "filename", ctx.Param("filename"))
	utils.OK(ctx, nil)
}
