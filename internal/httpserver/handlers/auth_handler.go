package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"dbugate/internal/auth"
	"dbugate/internal/config"
	"dbugate/internal/models"
	"dbugate/internal/repository"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(operators repository.OperatorRepo, jwts *auth.JWTManager, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "username and password required")
			return
		}
		op, err := operators.FindByUsername(r.Context(), req.Username)
		if err != nil || auth.CheckPassword(op.PasswordHash, req.Password) != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		tok, err := jwts.Sign(op)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "token error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"access_token": tok, "user": op})
	}
}

type registerOperatorReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// RegisterOperator creates gate operators. Outside of explicit
// self-registration mode, the caller must be an authenticated admin — except
// for the very first operator, which may be created with the bootstrap token
// header and must itself be an admin.
func RegisterOperator(operators repository.OperatorRepo, jwts *auth.JWTManager, cfg config.Config, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerOperatorReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "username and password required")
			return
		}
		if req.Role == "" {
			req.Role = models.RoleGateOperator
		}
		if req.Role != models.RoleAdmin && req.Role != models.RoleGateOperator {
			respondError(w, http.StatusBadRequest, "unknown role")
			return
		}

		if _, err := operators.FindByUsername(r.Context(), req.Username); err == nil {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}

		if !cfg.AllowOperatorSelfRegistration {
			total, err := operators.Count(r.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, "directory error")
				return
			}
			if total == 0 && cfg.BootstrapAdminToken != "" {
				if r.Header.Get("X-Bootstrap-Token") != cfg.BootstrapAdminToken || req.Role != models.RoleAdmin {
					respondError(w, http.StatusForbidden, "bootstrap token required for initial admin")
					return
				}
			} else {
				h := r.Header.Get("Authorization")
				if !strings.HasPrefix(h, "Bearer ") {
					respondError(w, http.StatusForbidden, "admin access required")
					return
				}
				claims, err := jwts.Verify(strings.TrimPrefix(h, "Bearer "))
				if err != nil || !claims.IsAdmin() {
					respondError(w, http.StatusForbidden, "admin access required")
					return
				}
			}
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		op := &models.Operator{Username: req.Username, PasswordHash: hash, Role: req.Role}
		if err := operators.Create(r.Context(), op); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		lg.Infow("operator registered", "username", op.Username, "role", op.Role)
		respondJSON(w, http.StatusCreated, map[string]any{"user": op})
	}
}

func Me(operators repository.OperatorRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, err := operators.Find(r.Context(), auth.OperatorID(r.Context()))
		if err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"user": op})
	}
}
