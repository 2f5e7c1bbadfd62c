package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/duome/duochat/pkg/auth"
	"github.com/duome/duochat/pkg/media"
	"github.com/duome/duochat/pkg/model"
)

// Handler builds the main HTTP handler: auth and history REST endpoints,
// media upload and download, and the WebSocket session endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth/invite-status", s.handleInviteStatus)
	mux.HandleFunc("POST /api/auth/setup", s.handleSetup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)

	mux.HandleFunc("GET /api/messages", s.handleHistory)
	mux.HandleFunc("POST /api/messages/clear", s.handleClearHistory)

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.Handle("GET /files/", http.StripPrefix("/files/",
		http.FileServer(http.Dir(s.media.Root()))))

	mux.HandleFunc("/ws", s.ServeWS)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// identityFromRequest authenticates a bearer credential on an HTTP request.
func (s *Server) identityFromRequest(r *http.Request) (model.Identity, bool) {
	identity, err := s.verifier.Verify(r.Header.Get("Authorization"))
	if err != nil {
		return model.Identity{}, false
	}
	return identity, true
}

type authResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    publicUser `json:"user"`
}

type publicUser struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// handleInviteStatus reports whether another account can still be created.
func (s *Server) handleInviteStatus(w http.ResponseWriter, _ *http.Request) {
	count, err := s.store.CountUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"canInvite": count < s.cfg.MaxUsers,
		"userCount": count,
	})
}

// handleSetup registers a new account, capped at MaxUsers. The serial is
// the shared-secret style login: exactly six digits, bcrypt-hashed.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := model.ValidateNickname(req.Nickname); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidateSerial(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := s.store.CountUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count >= s.cfg.MaxUsers {
		writeError(w, http.StatusBadRequest, "user limit reached")
		return
	}

	existing, err := s.store.GetUserByNickname(req.Nickname)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "nickname already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.store.CreateUser(req.Nickname, hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := s.verifier.Issue(user.Identity())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("user registered", "nickname", user.Nickname, "id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Token:   token,
		User:    publicUser{ID: user.ID, Nickname: user.Nickname},
	})
}

// handleLogin authenticates by serial alone: with at most two accounts the
// serial doubles as the identity selector, matching the original client.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "serial required")
		return
	}

	users, err := s.store.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	for _, u := range users {
		if !auth.CheckPassword(u.PasswordHash, req.Password) {
			continue
		}
		token, err := s.verifier.Issue(u.Identity())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, authResponse{
			Success: true,
			Token:   token,
			User:    publicUser{ID: u.ID, Nickname: u.Nickname},
		})
		return
	}

	writeError(w, http.StatusUnauthorized, "wrong serial")
}

// handleMe returns the authenticated user and their chat partner (the
// other registered account, or null before the partner signs up).
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.identityFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	user, err := s.store.GetUserByID(identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "user no longer exists")
		return
	}

	users, err := s.store.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var partner *publicUser
	for _, u := range users {
		if u.ID != user.ID {
			partner = &publicUser{ID: u.ID, Nickname: u.Nickname}
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    publicUser{ID: user.ID, Nickname: user.Nickname},
		"partner": partner,
	})
}

// handleHistory returns the full message history. This is the recovery
// path for deliveries dropped while a peer was unreachable.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identityFromRequest(r); !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	messages, err := s.store.ListMessages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleClearHistory wipes the message history (maintenance operation).
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.identityFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := s.store.DeleteAllMessages(); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("message history cleared", "by", identity.UserID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleUpload stores a media blob and returns its retrievable URL. The
// client then sends a "message" event referencing that URL.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identityFromRequest(r); !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxFileSize+4096)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file")
		return
	}
	defer func() { _ = file.Close() }()

	url, bucket, err := s.media.Save(file, header.Filename)
	if err != nil {
		if errors.Is(err, media.ErrFileTooLarge) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		slog.Error("upload failed", "err", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	s.metrics.Uploads.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"url":      url,
		"type":     bucket,
		"filename": path.Base(url),
	})
}
