package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/templateservice"
)

const (
	payloadField  = "payload"
	maxMemoryForm = 32 << 20
)

// decodeTemplate reads a template request sent either as JSON, with file
// contents base64 encoded, or as multipart/form-data. A multipart request
// carries the JSON request in the "payload" field and raw file parts named
// after the request's file lists (thumbnails, inputFiles, outputFiles). A
// part fills the payload entry with the same filename, so deleteOldFile can
// be given there; unmatched parts are appended.
func decodeTemplate(r *http.Request, req any, groups map[string]*[]templateservice.File) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return decodeJSON(r, req)
	}
	if err := r.ParseMultipartForm(maxMemoryForm); err != nil {
		return fmt.Errorf("%w: multipart form: %v", apperr.ErrInvalid, err)
	}
	defer r.MultipartForm.RemoveAll()

	payload := r.FormValue(payloadField)
	if payload == "" {
		return apperr.Invalid("multipart form needs a %q field", payloadField)
	}
	if err := json.Unmarshal([]byte(payload), req); err != nil {
		return apperr.Invalid("payload: %v", err)
	}
	for field, list := range groups {
		for _, fh := range r.MultipartForm.File[field] {
			name, err := safeName(fh.Filename)
			if err != nil {
				return apperr.Invalid("%s: %v", field, err)
			}
			data, err := readPart(fh)
			if err != nil {
				return apperr.Invalid("%s: %v", field, err)
			}
			attach(list, name, data)
		}
	}
	return nil
}

func attach(list *[]templateservice.File, name string, data []byte) {
	for i := range *list {
		f := &(*list)[i]
		if f.Filename == name && len(f.Content) == 0 {
			f.Content = data
			return
		}
	}
	*list = append(*list, templateservice.File{Filename: name, Content: data})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// safeName validates that the filename is a plain name with no path
// separators or traversal.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}
