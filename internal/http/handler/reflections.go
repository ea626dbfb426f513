package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"revo/internal/ai"
	"revo/internal/auth"
	"revo/internal/reflection"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ReflectionHandler struct {
	Svc     *reflection.Service
	Account *auth.Account
}

type reflectionDTO struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Text          string          `json:"text"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at"`
	RolesInvolved []string        `json:"roles_involved"`
	Suggestions   json.RawMessage `json:"suggestions"`
	CanRegenerate bool            `json:"can_regenerate"`
	IsPublic      bool            `json:"is_public"`
	IsAnonymous   bool            `json:"is_anonymous"`
	Likes         int             `json:"likes"`
}

func toDTO(r reflection.Reflection) reflectionDTO {
	return reflectionDTO{
		ID:            r.ID,
		Title:         r.Title,
		Text:          r.Text,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		RolesInvolved: []string(r.RolesInvolved),
		Suggestions:   r.Suggestions,
		CanRegenerate: reflection.ResolveCanRegenerate(r.CanRegenerate, r.Suggestions),
		IsPublic:      r.IsPublic,
		IsAnonymous:   r.IsAnonymous,
		Likes:         r.Likes,
	}
}

type createReflectionReq struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func (h *ReflectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createReflectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	id, err := h.Svc.Create(r.Context(), uid, reflection.CreateInput{
		Text:  req.Text,
		Title: req.Title,
	})
	if err != nil {
		if errors.Is(err, reflection.ErrEmptyText) {
			http.Error(w, "text required", http.StatusBadRequest)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *ReflectionHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.Svc.List(r.Context(), uid)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]reflectionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *ReflectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	row, err := h.Svc.Get(r.Context(), uid, id)
	if err != nil {
		writeReflectionErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toDTO(row))
}

type editReflectionReq struct {
	Text string `json:"text"`
}

func (h *ReflectionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	var req editReflectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if err := h.Svc.EditText(r.Context(), uid, id, req.Text); err != nil {
		if errors.Is(err, reflection.ErrEmptyText) {
			http.Error(w, "text required", http.StatusBadRequest)
			return
		}
		writeReflectionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReflectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), uid, id); err != nil {
		writeReflectionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type visibilityReq struct {
	IsPublic    bool `json:"is_public"`
	IsAnonymous bool `json:"is_anonymous"`
}

func (h *ReflectionHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	var req visibilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if err := h.Svc.SetVisibility(r.Context(), uid, id, req.IsPublic, req.IsAnonymous); err != nil {
		writeReflectionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suggestReq struct {
	Roles []string `json:"roles"`
}

func (h *ReflectionHandler) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	var req suggestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	roles := req.Roles
	if len(roles) == 0 {
		saved, err := h.Account.Roles(r.Context(), uid)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		roles = saved
	}

	suggestions, err := h.Svc.GenerateSuggestions(r.Context(), uid, id, roles)
	if err != nil {
		switch {
		case errors.Is(err, reflection.ErrNoRoles):
			http.Error(w, "at least one role required", http.StatusBadRequest)
		case errors.Is(err, reflection.ErrRegenerateBlocked):
			http.Error(w, "suggestions already generated; edit the reflection first", http.StatusConflict)
		case errors.Is(err, ai.ErrSummarizationFailed):
			http.Error(w, "suggestion generation failed", http.StatusBadGateway)
		default:
			writeReflectionErr(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"suggestions": suggestions})
}

func (h *ReflectionHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	actor := strconv.FormatUint(uid, 10)
	likes, liked, err := h.Svc.ToggleLike(r.Context(), id, actor, &uid)
	if err != nil {
		if errors.Is(err, reflection.ErrLikeRateLimited) {
			http.Error(w, "too many likes, slow down", http.StatusTooManyRequests)
			return
		}
		writeReflectionErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"likes": likes,
		"liked": liked,
	})
}

func (h *ReflectionHandler) MyLikes(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.Svc.LikedReflections(r.Context(), uid)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]publicDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPublicDTO(row))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func parseReflectionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeReflectionErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reflection.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, reflection.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
