package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"m5chat/pkg/blob"
	"m5chat/pkg/logger"
	"m5chat/pkg/utils"
)

// upload accepts a multipart form with fields "file", "username" and
// "kind" (image or voice). The file is written to the attachment store
// and a message carrying its URL is appended and broadcast, so the
// upload expires together with the message that announced it.
func (a *API) upload(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	if room == "" || strings.Contains(room, ":") {
		utils.JSONError(w, http.StatusBadRequest, "invalid room name")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxMem+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	username := r.FormValue("username")
	kind := r.FormValue("kind")
	if username == "" {
		utils.JSONError(w, http.StatusBadRequest, "username required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer func() { _ = file.Close() }()

	url, path, err := a.blobs.Save(kind, header.Filename, file)
	switch {
	case errors.Is(err, blob.ErrTooLarge):
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	case errors.Is(err, blob.ErrUnsupportedType):
		utils.JSONError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	case err != nil:
		logger.Error("upload_save_failed", "room", room, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	m, err := a.gw.PostAttachment(room, username, kind, url, path)
	if err != nil {
		// the file is useless without its message row
		_ = a.blobs.Remove(path)
		logger.Error("upload_append_failed", "room", room, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logger.Info("upload_stored", "room", room, "username", username,
		"kind", kind, "url", url, "expires_at", time.Unix(0, m.ExpiresAt).UTC().Format(time.RFC3339))
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}
