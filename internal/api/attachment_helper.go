package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigconnect/gigconnect/internal/ticket"
)

// multipartOverhead is the slack allowed on top of the file limit for the
// form boundary and the content field.
const multipartOverhead = 64 << 10

var errFileTooLarge = errors.New("attachment exceeds the upload limit")

var attachmentBlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".sh": true,
	".vbs": true, ".js": true, ".com": true, ".scr": true,
}

func isBlockedExtension(filename string) bool {
	return attachmentBlockedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// detectFileContentType trusts a specific client header and otherwise sniffs
// the first 512 bytes.
func detectFileContentType(fh *multipart.FileHeader, f multipart.File) string {
	contentType := fh.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	_, _ = f.Seek(0, 0)
	if n == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}

// attachmentForm is a parsed attachment request. Close releases temp files.
type attachmentForm struct {
	content string
	upload  *ticket.Upload
	file    multipart.File
	form    *multipart.Form
}

func (f *attachmentForm) Close() {
	if f.file != nil {
		_ = f.file.Close()
	}
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

// parseAttachmentForm reads the content field and the optional file part,
// enforcing maxBytes on the file. It returns errFileTooLarge for oversized
// uploads and a *ticket.ValidationError for bad input.
func parseAttachmentForm(c *gin.Context, maxBytes int64) (*attachmentForm, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, errFileTooLarge
		}
		return nil, &ticket.ValidationError{Fields: fieldErrors("file", "request must be multipart/form-data")}
	}

	out := &attachmentForm{
		content: c.Request.FormValue("content"),
		form:    c.Request.MultipartForm,
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return out, nil
	}
	if err != nil {
		out.Close()
		return nil, &ticket.ValidationError{Fields: fieldErrors("file", "could not read the uploaded file")}
	}
	if fh.Size > maxBytes {
		out.Close()
		return nil, errFileTooLarge
	}
	if isBlockedExtension(fh.Filename) {
		out.Close()
		return nil, &ticket.ValidationError{Fields: fieldErrors("file", "file type is not allowed")}
	}

	f, err := fh.Open()
	if err != nil {
		out.Close()
		return nil, err
	}
	out.file = f
	out.upload = &ticket.Upload{
		Filename:    fh.Filename,
		ContentType: detectFileContentType(fh, f),
		Body:        f,
	}
	return out, nil
}
