// Package upload validates multipart file uploads: size is bounded and the
// content type is sniffed from the bytes, never taken from the client.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
)

// Room for multipart boundaries and part headers on top of the file itself.
const multipartOverhead = 64 << 10

const maxMemory = 1 << 20

// File describes an accepted upload.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// Validator enforces the upload policy.
type Validator struct {
	maxBytes int64
	allowed  []string
}

// NewValidator accepts files up to maxBytes whose sniffed type is in allowed.
// MIME parameters such as charset are ignored on both sides.
func NewValidator(maxBytes int64, allowed []string) *Validator {
	normalized := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if mediaType := baseType(a); mediaType != "" {
			normalized = append(normalized, mediaType)
		}
	}
	return &Validator{maxBytes: maxBytes, allowed: normalized}
}

// Validate reads the file in form field and returns its metadata. Every
// policy violation is a bad request.
func (v *Validator) Validate(w http.ResponseWriter, r *http.Request, field string) (*File, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, apierr.BadRequest("request must be multipart/form-data", err)
	}

	r.Body = http.MaxBytesReader(w, r.Body, v.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, v.tooLarge(err)
		}
		return nil, apierr.BadRequest("malformed multipart body", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, apierr.BadRequest(fmt.Sprintf("missing file field %q", field), err)
	}
	defer file.Close()

	if header.Size > v.maxBytes {
		return nil, v.tooLarge(nil)
	}
	if header.Size == 0 {
		return nil, apierr.BadRequest("file is empty", nil)
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, apierr.BadRequest("could not read file", err)
	}
	if !v.allows(detected) {
		return nil, apierr.BadRequest(fmt.Sprintf("file type %s is not allowed", baseType(detected.String())), nil)
	}

	return &File{
		Name: header.Filename,
		Size: header.Size,
		MIME: baseType(detected.String()),
	}, nil
}

func (v *Validator) allows(detected *mimetype.MIME) bool {
	for _, allowed := range v.allowed {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func (v *Validator) tooLarge(cause error) error {
	return apierr.BadRequest(fmt.Sprintf("file exceeds %d bytes", v.maxBytes), cause)
}

func baseType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
