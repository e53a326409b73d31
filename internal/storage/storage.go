// Package storage uploads ticket attachments to object storage or local disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/gigconnect/gigconnect/internal/config"
)

// Uploader stores one attachment and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, ticketID, filename, contentType string, body io.Reader) (string, error)
}

// NewUploader picks the backend named by cfg.Driver.
func NewUploader(cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Uploader(cfg.S3)
	case "local", "":
		return NewLocalUploader(cfg.LocalDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a collision-free key under the ticket's prefix.
func ObjectKey(ticketID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "attachment"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return path.Join("tickets", ticketID, uuid.NewString()+"-"+name)
}
