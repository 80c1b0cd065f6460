package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"dbugate/internal/auth"
	"dbugate/internal/gate"
	"dbugate/internal/models"
)

// Malformed input is rejected before any token is consumed or any log row is
// written; only decisions reach the audit trail.

func ScanStudent(svc *gate.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.StudentID == "" {
			respondBlocked(w, http.StatusBadRequest, "Student ID required")
			return
		}
		if !validStudentID(req.StudentID) {
			respondBlocked(w, http.StatusBadRequest, "Invalid student ID format")
			return
		}

		res, err := svc.ScanStudent(r.Context(), req.StudentID, auth.OperatorID(r.Context()))
		if err != nil {
			lg.Errorw("scan-student failed", "student_id", req.StudentID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		code := http.StatusOK
		if res.Status == models.ResultBlocked {
			code = http.StatusForbidden
			if res.Reason == gate.ReasonStudentNotFound {
				code = http.StatusNotFound
			}
		}
		respondJSON(w, code, res)
	}
}

func ScanAsset(svc *gate.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			QRData    string `json:"qr_data"`
			ExitToken string `json:"exit_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.StudentID == "" || req.QRData == "" || req.ExitToken == "" {
			respondBlocked(w, http.StatusBadRequest, "Student ID, QR data, and exit token required")
			return
		}
		if !validStudentID(req.StudentID) {
			respondBlocked(w, http.StatusBadRequest, "Invalid student ID format")
			return
		}

		dec, err := svc.ScanAsset(r.Context(), req.StudentID, req.QRData, req.ExitToken, auth.OperatorID(r.Context()))
		if err != nil {
			lg.Errorw("scan-asset failed", "student_id", req.StudentID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		respondDecision(w, dec)
	}
}

func ExitWithoutAsset(svc *gate.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			ExitToken string `json:"exit_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.StudentID == "" || req.ExitToken == "" {
			respondBlocked(w, http.StatusBadRequest, "Student ID and exit token required")
			return
		}
		if !validStudentID(req.StudentID) {
			respondBlocked(w, http.StatusBadRequest, "Invalid student ID format")
			return
		}

		dec, err := svc.ExitWithoutAsset(r.Context(), req.StudentID, req.ExitToken, auth.OperatorID(r.Context()))
		if err != nil {
			lg.Errorw("exit-without-asset failed", "student_id", req.StudentID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		respondDecision(w, dec)
	}
}

func respondDecision(w http.ResponseWriter, dec *gate.Decision) {
	code := http.StatusOK
	if dec.Status == models.ResultBlocked {
		code = http.StatusForbidden
	}
	respondJSON(w, code, dec)
}

func ExitLogs(svc *gate.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}
		logs, err := svc.Logs(r.Context(), limit)
		if err != nil {
			lg.Errorw("exit logs query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
	}
}
