package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/tokyo-express/internal/domain"
)

type uploadResponse struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

var errNoImage = domain.Invalid("image", "image file is required")

// uploadImage stores the multipart "image" field and returns its public URL.
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, r, errors.New("uploads are not configured"))
		return
	}
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+64<<10)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, errNoImage)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, errNoImage)
		return
	}
	defer func() { _ = file.Close() }()
	if header.Size > h.maxUploadSize {
		writeError(w, r, &http.MaxBytesError{Limit: h.maxUploadSize})
		return
	}

	obj, err := h.media.Save(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		Path:     h.absoluteURL(r, obj.URL),
		Filename: obj.Filename,
	})
}

// absoluteURL prefixes root-relative paths with the configured public URL
// or, failing that, the scheme and host the request came in on.
func (h *Handler) absoluteURL(r *http.Request, path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	if h.uploadsPublicURL != "" {
		return strings.TrimRight(h.uploadsPublicURL, "/") + path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host + path
}
