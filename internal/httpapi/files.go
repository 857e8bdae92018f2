// ABOUTME: Workspace file browsing and markdown preview handlers
// ABOUTME: Every path is resolved and contained within the configured roots

package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
)

// previewLimit caps how much of a file the preview endpoint will read.
const previewLimit = 1 << 20 // 1 MiB

type fileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// resolveWithinRoots cleans path and verifies it falls under one of the
// configured workspace roots. Returns the cleaned path or false.
func (s *Server) resolveWithinRoots(path string) (string, bool) {
	if path == "" || !filepath.IsAbs(path) {
		return "", false
	}
	cleaned := filepath.Clean(path)
	for _, root := range s.roots {
		if cleaned == root || strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
			return cleaned, true
		}
	}
	return "", false
}

// handleFilesList lists a directory under the workspace roots. With no
// path parameter it lists the roots themselves.
func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		entries := make([]fileEntry, 0, len(s.roots))
		for _, root := range s.roots {
			entries = append(entries, fileEntry{
				Name:  filepath.Base(root),
				Path:  root,
				IsDir: true,
			})
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	resolved, ok := s.resolveWithinRoots(path)
	if !ok {
		writeJSONError(w, http.StatusForbidden, "path outside workspace roots")
		return
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "directory not readable")
		return
	}

	entries := make([]fileEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		entries = append(entries, fileEntry{
			Name:  e.Name(),
			Path:  filepath.Join(resolved, e.Name()),
			IsDir: e.IsDir(),
			Size:  info.Size(),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleFilePreview renders a markdown file under the workspace roots to
// HTML. Non-markdown files are returned as plain text.
func (s *Server) handleFilePreview(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	resolved, ok := s.resolveWithinRoots(path)
	if !ok {
		writeJSONError(w, http.StatusForbidden, "path outside workspace roots")
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "file not readable")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, previewLimit))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "read failed")
		return
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if ext == ".md" || ext == ".markdown" {
		var htmlBuf bytes.Buffer
		if err := goldmark.Convert(content, &htmlBuf); err != nil {
			s.logger.Warn("markdown render failed", "path", resolved, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "render failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(htmlBuf.Bytes())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}
