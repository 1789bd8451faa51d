package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/room"
	"github.com/wechange-eg/conference-hub/settings"
	"github.com/wechange-eg/conference-hub/types"
)

// Server is the HTTP surface consumed by the front end: the join-URL endpoint
// and the provisioning-queue polling endpoint that hides remote creation
// latency, plus a settings introspection endpoint.
type Server struct {
	store    persistence.Persister
	manager  *room.Manager
	resolver *settings.Resolver
}

func NewServer(store persistence.Persister, manager *room.Manager, resolver *settings.Resolver) *Server {
	return &Server{store: store, manager: manager, resolver: resolver}
}

func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/events/{event:[a-zA-Z0-9_-]+}/room/url", s.roomUrlHandler).Methods(http.MethodGet)
	router.HandleFunc("/events/{event:[a-zA-Z0-9_-]+}/room/queue", s.roomQueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/settings/{type:[a-z]+}/{id:[a-zA-Z0-9_-]+}", s.settingsHandler).Methods(http.MethodGet)
	return router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}

func (s *Server) eventSource(w http.ResponseWriter, r *http.Request) (room.EventSource, bool) {
	vars := mux.Vars(r)
	event, err := s.store.GetEvent(vars["event"])
	if errors.Is(err, persistence.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return room.EventSource{}, false
	}
	if err != nil {
		globals.AppLogger.Error("could not load event", "event", vars["event"], "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return room.EventSource{}, false
	}
	return room.EventSource{Event: event}, true
}

func (s *Server) requestUser(r *http.Request) *types.User {
	userId := r.URL.Query().Get("user")
	if userId == "" {
		return nil
	}
	user := types.User{Id: userId}
	if err := s.store.GetUser(&user); err != nil {
		return nil
	}
	return &user
}

type roomUrlResponse struct {
	Status   string `json:"status,omitempty"`
	Url      string `json:"url,omitempty"`
	QueueUrl string `json:"queue_url,omitempty"`
}

// roomUrlHandler returns the direct join URL once the room exists. Until
// then, it triggers lazy creation and points the front end at the queue
// endpoint. An ineligible event yields null.
func (s *Server) roomUrlHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.eventSource(w, r)
	if !ok {
		return
	}
	if !src.CanHaveRoom() {
		writeJSON(w, nil)
		return
	}
	u, err := s.manager.RoomURL(src, s.requestUser(r))
	if err != nil {
		globals.AppLogger.Error("could not get room url", "source", src.SourceKey(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if u == "" {
		writeJSON(w, roomUrlResponse{
			Status:   room.StatusWaiting,
			QueueUrl: "/events/" + src.Event.Id + "/room/queue",
		})
		return
	}
	writeJSON(w, roomUrlResponse{Status: room.StatusDone, Url: u})
}

func (s *Server) roomQueueHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := s.eventSource(w, r)
	if !ok {
		return
	}
	state, err := s.manager.QueueState(src, s.requestUser(r))
	if err != nil {
		globals.AppLogger.Error("could not get queue state", "source", src.SourceKey(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if state == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, state)
}

type settingsResponse struct {
	ServerChoice        types.ServerChoice `json:"bbb_server_choice"`
	ServerChoicePremium types.ServerChoice `json:"bbb_server_choice_premium"`
	Nature              string             `json:"nature,omitempty"`
	Params              types.ParamMap     `json:"bbb_params"`
	FinalizedParams     types.ParamMap     `json:"finalized_params"`
}

// settingsHandler resolves and returns the merged settings composite for any
// chain object, mostly for debugging an inheritance setup.
func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	obj, err := s.chainObject(vars["type"], vars["id"])
	if errors.Is(err, persistence.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		globals.AppLogger.Error("could not load chain object", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	res, err := s.resolver.GetForObject(obj, false)
	if err != nil {
		globals.AppLogger.Error("could not resolve settings", "object", types.SettingsKey(obj), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if res == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, settingsResponse{
		ServerChoice:        res.ServerChoice,
		ServerChoicePremium: res.ServerChoicePremium,
		Nature:              res.Nature,
		Params:              res.Params,
		FinalizedParams:     res.FinalizedParams(s.resolver.PortalDefaults),
	})
}

func (s *Server) chainObject(objectType, id string) (types.ChainMember, error) {
	switch objectType {
	case types.ObjectTypeEvent:
		return s.store.GetEvent(id)
	case types.ObjectTypeConferenceRoom:
		return s.store.GetConferenceRoom(id)
	case types.ObjectTypeGroup:
		return s.store.GetGroup(id)
	case types.ObjectTypePortal:
		return s.store.GetPortal(id)
	}
	return nil, persistence.ErrNotFound
}
