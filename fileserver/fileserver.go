// Package fileserver is the small origin the spec mentions as sharing
// a certificate factory with the proxy but places out of scope for
// deep rewriting: a directory listing, single-file GET, and multipart
// upload endpoint. It is grounded on original_source's rouille-based
// controller/routes/server trio, translated onto net/http with
// go-chi/chi/v5 for routing, the way rclone's lib/http package builds
// its own chi-routed file serving endpoints.
package fileserver

import (
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/krystianbajno/dropperoni/dlog"
)

const maxUploadMemory = 32 << 20 // 32 MiB held in memory before spilling to disk

// Server serves and accepts files under a single root directory. It
// holds no other state: every request is independent.
type Server struct {
	dir    string
	log    *zap.Logger
	router chi.Router
}

// New builds a Server rooted at dir. dir must already exist.
func New(dir string) *Server {
	s := &Server{
		dir: dir,
		log: dlog.For("fileserver"),
	}
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Post("/", s.handleUpload)
	r.Get("/*", s.handleGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.log.Info("request", zap.String("remote_addr", r.RemoteAddr), zap.String("method", r.Method), zap.String("url", r.URL.String()))
	s.router.ServeHTTP(w, r)
}

// handleIndex lists every regular file directly under the root
// directory as an unordered list of links, matching
// original_source's index view.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("reading directory", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML(names))
}

// indexHTML renders names as an unordered list of links, each
// href-escaped and text-escaped independently since a filename may
// contain characters meaningful to HTML.
func indexHTML(names []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>dropperoni</title></head><body><ul>\n")
	for _, name := range names {
		href := html.EscapeString(url.PathEscape(name))
		fmt.Fprintf(&b, "<li><a href=\"/%s\">%s</a></li>\n", href, html.EscapeString(name))
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

// handleGet serves a single regular file by name, refusing to escape
// the root directory via ".." or absolute path segments.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/")
	path, err := s.safeJoin(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

// handleUpload accepts a single multipart/form-data file and writes it
// into the root directory under its original filename, then responds
// with the refreshed index — the same single-file pattern as
// original_source's store handler. When the form carries several file
// fields, one of them is stored and the rest are ignored; which field
// wins is not defined, since the fields are visited in map order.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File) == 0 {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}

	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			if err := s.storeUpload(fh); err != nil {
				s.log.Warn("storing upload", zap.Error(err))
				http.Error(w, "could not store file", http.StatusInternalServerError)
				return
			}
			s.handleIndex(w, r)
			return
		}
	}
}

func (s *Server) storeUpload(fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dstPath, err := s.safeJoin(fh.Filename)
	if err != nil {
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// safeJoin joins name onto the root directory and rejects any result
// that escapes it, refusing path traversal via ".." segments.
func (s *Server) safeJoin(name string) (string, error) {
	cleaned := filepath.Clean("/" + name)
	joined := filepath.Join(s.dir, cleaned)
	if !strings.HasPrefix(joined, filepath.Clean(s.dir)+string(filepath.Separator)) && joined != filepath.Clean(s.dir) {
		return "", fmt.Errorf("fileserver: path %q escapes root", name)
	}
	return joined, nil
}
