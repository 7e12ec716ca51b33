package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/router"
)

// API serves the REST surface over a Router.
type API struct {
	router *router.Router
}

type userRequest struct {
	Username string `json:"username"`
}

type groupRequest struct {
	GroupName string `json:"groupName"`
}

type messageRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	IsGroup   bool   `json:"isGroup"`
	AudioData []byte `json:"audioData,omitempty"`
}

// Health returns a simple health check handler.
func Health(r *router.Router) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"users":  len(r.ListUsers()),
			"groups": len(r.ListGroups()),
		})
	}
}

// Register mounts the REST routes on mux.
func (a *API) Register(mux *httprouter.Router) {
	mux.GET("/health", Health(a.router))
	mux.GET("/api/users", a.listUsers)
	mux.POST("/api/users", a.registerUser)
	mux.GET("/api/groups", a.listGroups)
	mux.POST("/api/groups", a.createGroup)
	mux.GET("/api/groups/:name", a.groupInfo)
	mux.POST("/api/groups/:name/members", a.joinGroup)
	mux.GET("/api/history/:target", a.history)
	mux.POST("/api/messages", a.sendMessage)
}

// NewAPI creates the REST handlers for r.
func NewAPI(r *router.Router) *API {
	return &API{router: r}
}

func (a *API) listUsers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.router.ListUsers())
}

func (a *API) listGroups(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.router.ListGroups())
}

func (a *API) groupInfo(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	g, ok := a.router.Group(ps.ByName("name"))
	if !ok {
		writeError(w, domain.ErrUnknownGroup)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) registerUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := a.router.Register(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userRequest{Username: name})
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req groupRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := a.router.CreateGroup(r.Context(), req.GroupName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupRequest{GroupName: name})
}

func (a *API) joinGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	name := ps.ByName("name")
	if err := a.router.JoinGroup(r.Context(), name, req.Username); err != nil {
		writeError(w, err)
		return
	}
	g, _ := a.router.Group(name)
	writeJSON(w, http.StatusOK, g)
}

func (a *API) history(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	isGroup, _ := strconv.ParseBool(q.Get("group"))
	msgs, err := a.router.GetHistory(router.HistoryQuery{
		Target:    ps.ByName("target"),
		Requester: q.Get("from"),
		IsGroup:   isGroup,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		msg domain.Message
		err error
	)
	if len(req.AudioData) > 0 {
		msg, err = a.router.SendAttachment(r.Context(), router.AttachmentCommand{
			From: req.From, To: req.To, Payload: req.AudioData, IsGroup: req.IsGroup,
		})
	} else {
		msg, err = a.router.SendMessage(r.Context(), router.SendCommand{
			From: req.From, To: req.To, Body: req.Message, IsGroup: req.IsGroup,
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrIncompleteData):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownSender):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownRecipient), errors.Is(err, domain.ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "BAD_REQUEST"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{"error": err.Error(), "code": domain.Code(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
