package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"m5chat/pkg/logger"
	"m5chat/pkg/models"
	"m5chat/pkg/utils"
)

type roomView struct {
	Name        string   `json:"name"`
	CreatedTS   int64    `json:"created_ts"`
	ActiveUsers []string `json:"active_users"`
}

// listRooms returns rooms that still hold at least one live message,
// newest first. Rooms whose last message expired are simply absent.
func (a *API) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.st.ActiveRooms(time.Now())
	if err != nil {
		logger.Error("rooms_list_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]roomView, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, roomView{
			Name:        rm.Name,
			CreatedTS:   rm.CreatedTS,
			ActiveUsers: a.tracker.UsersInRoom(rm.Name),
		})
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string][]roomView{"rooms": out})
}

// createRoom registers a room ahead of any join. Joining a room that was
// never created this way works the same; the endpoint only exists so
// clients can reserve a name before connecting.
func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Room string `json:"room"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Room == "" {
		utils.JSONError(w, http.StatusBadRequest, "room required")
		return
	}
	if strings.Contains(req.Room, ":") {
		utils.JSONError(w, http.StatusBadRequest, "room name must not contain ':'")
		return
	}
	if err := a.st.EnsureRoom(req.Room, time.Now()); err != nil {
		logger.Error("room_create_failed", "room", req.Room, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logger.Info("room_created", "room", req.Room)
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"room": req.Room})
}

// listMessages returns the live history for one room, oldest first. An
// unknown or fully-expired room answers with an empty list, not 404, so
// that polling clients need no special case.
func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	msgs, err := a.st.ListLive(room, time.Now())
	if err != nil {
		logger.Error("messages_list_failed", "room", room, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Room     string           `json:"room"`
		Messages []models.Message `json:"messages"`
	}{Room: room, Messages: msgs})
}
