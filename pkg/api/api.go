// Package api exposes the read-side REST surface next to the socket
// gateway: room listing and creation, live history, and multipart
// attachment uploads. Everything here reads or writes through the same
// store and gateway the socket path uses, so both surfaces always agree.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"m5chat/pkg/blob"
	"m5chat/pkg/gateway"
	"m5chat/pkg/presence"
	"m5chat/pkg/store"
)

// API bundles the dependencies the REST handlers need.
type API struct {
	st      *store.Store
	tracker *presence.Tracker
	gw      *gateway.Gateway
	blobs   *blob.FS
	maxMem  int64
}

// New builds the REST layer. maxUpload bounds multipart bodies.
func New(st *store.Store, tr *presence.Tracker, gw *gateway.Gateway, blobs *blob.FS, maxUpload int64) *API {
	return &API{st: st, tracker: tr, gw: gw, blobs: blobs, maxMem: maxUpload}
}

// Router returns the /v1 router.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/rooms", a.listRooms).Methods(http.MethodGet)
	v1.HandleFunc("/rooms", a.createRoom).Methods(http.MethodPost)
	v1.HandleFunc("/rooms/{room}/messages", a.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/rooms/{room}/uploads", a.upload).Methods(http.MethodPost)
	return r
}
