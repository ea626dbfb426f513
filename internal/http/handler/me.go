package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"revo/internal/auth"
	"revo/internal/calendar"
	"revo/internal/reflection"

	"gorm.io/gorm"
)

type MeHandler struct {
	DB      *gorm.DB
	Account *auth.Account
	Refl    *reflection.Service
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var u auth.User
	if err := h.DB.First(&u, uid).Error; err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":    u.ID,
		"email":      u.Email,
		"timezone":   u.TimeZone,
		"roles":      []string(u.Roles),
		"created_at": u.CreatedAt,
	})
}

type timezoneReq struct {
	TimeZone string `json:"timezone"`
}

func (h *MeHandler) SetTimeZone(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req timezoneReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TimeZone) == "" {
		http.Error(w, "timezone required", http.StatusBadRequest)
		return
	}

	if err := h.Account.SetTimeZone(r.Context(), uid, req.TimeZone); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type roleReq struct {
	Role string `json:"role"`
}

func (h *MeHandler) Roles(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	roles, err := h.Account.Roles(r.Context(), uid)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeRoles(w, roles)
}

func (h *MeHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req roleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	roles, err := h.Account.AddRole(r.Context(), uid, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyRole) {
			http.Error(w, "role required", http.StatusBadRequest)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeRoles(w, roles)
}

func (h *MeHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req roleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	roles, err := h.Account.RemoveRole(r.Context(), uid, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyRole) {
			http.Error(w, "role required", http.StatusBadRequest)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeRoles(w, roles)
}

func writeRoles(w http.ResponseWriter, roles []string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"roles": roles})
}

func (h *MeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	loc, err := h.Account.ResolveLocation(r.Context(), uid, r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	now := time.Now().In(loc)
	weekStart := calendar.StartOfWeek(now, loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	stats, err := h.Refl.Stats(r.Context(), uid, weekStart, monthStart)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var u auth.User
	if err := h.DB.First(&u, uid).Error; err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	days := int(now.Sub(u.CreatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"totalReflections":       stats.TotalReflections,
		"totalPublicReflections": stats.TotalPublicReflections,
		"totalLikesReceived":     stats.TotalLikesReceived,
		"reflectionsThisWeek":    stats.ReflectionsThisWeek,
		"reflectionsThisMonth":   stats.ReflectionsThisMonth,
		"daysSinceJoined":        days,
	})
}

func (h *MeHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Account.DeleteAccount(r.Context(), uid); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
