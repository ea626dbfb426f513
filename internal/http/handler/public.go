package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"revo/internal/reflection"

	"github.com/google/uuid"
)

// PublicService is the slice of the reflection service visible without a
// session: shared entries and visitor likes.
type PublicService interface {
	PublicFeed(ctx context.Context, limit int) ([]reflection.Reflection, error)
	GetPublic(ctx context.Context, id uuid.UUID) (reflection.Reflection, error)
	ToggleLike(ctx context.Context, id uuid.UUID, actorID string, likerUID *uint64) (int, bool, error)
}

// PublicHandler serves the unauthenticated sharing surface.
type PublicHandler struct {
	Svc PublicService
}

// publicDTO is the shape shared with non-owners. Owner identity is withheld
// for anonymous entries, and suggestions never leave the owner's view.
type publicDTO struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	OwnerUID  *uint64   `json:"owner_uid"`
	Likes     int       `json:"likes"`
}

func toPublicDTO(r reflection.Reflection) publicDTO {
	d := publicDTO{
		ID:        r.ID,
		Title:     r.Title,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
		Likes:     r.Likes,
	}
	if !r.IsAnonymous {
		uid := r.UID
		d.OwnerUID = &uid
	}
	return d
}

func (h *PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	rows, err := h.Svc.PublicFeed(r.Context(), limit)
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

// Get serves one shared reflection. Non-public entries are indistinguishable
// from missing ones.
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	row, err := h.Svc.GetPublic(r.Context(), id)
	if err != nil {
		if errors.Is(err, reflection.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPublicDTO(row))
}

type visitorLikeReq struct {
	ActorID string `json:"actor_id"`
}

// Like toggles a visitor's like on a shared reflection. The actor id is a
// client-generated visitor token; no account is involved, so no like index
// row is written.
func (h *PublicHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := parseReflectionID(w, r)
	if !ok {
		return
	}

	var req visitorLikeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	actor := strings.TrimSpace(req.ActorID)
	if actor == "" {
		http.Error(w, "actor_id required", http.StatusBadRequest)
		return
	}

	if _, err := h.Svc.GetPublic(r.Context(), id); err != nil {
		if errors.Is(err, reflection.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	likes, liked, err := h.Svc.ToggleLike(r.Context(), id, "v:"+actor, nil)
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
