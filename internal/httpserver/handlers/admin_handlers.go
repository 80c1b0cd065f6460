package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dbugate/internal/gate"
	"dbugate/internal/models"
	"dbugate/internal/repository"
)

type registerAssetReq struct {
	OwnerStudentID string `json:"owner_student_id"`
	SerialNumber   string `json:"serial_number"`
	Brand          string `json:"brand,omitempty"`
	Color          string `json:"color,omitempty"`
	VisibleSpecs   string `json:"visible_specs,omitempty"`
}

// RegisterAsset creates an asset and its QR signature. A duplicate serial is
// a 409 CONFLICT surfacing the existing record so an admin can decide on an
// override instead of silently re-binding the sticker.
func RegisterAsset(students repository.StudentRepo, assets repository.AssetRepo, qr *gate.QRSignatures, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerAssetReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.SerialNumber = strings.TrimSpace(req.SerialNumber)
		if req.OwnerStudentID == "" {
			respondError(w, http.StatusBadRequest, "owner_student_id is required")
			return
		}
		if req.SerialNumber == "" {
			respondError(w, http.StatusBadRequest, "serial_number is required")
			return
		}
		if len(req.SerialNumber) < 3 {
			respondError(w, http.StatusBadRequest, "serial_number is too short")
			return
		}

		student, err := students.Find(r.Context(), req.OwnerStudentID)
		if err == repository.ErrNotFound {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "directory error")
			return
		}
		if student.Status != models.StudentActive {
			respondError(w, http.StatusBadRequest, "student is not active")
			return
		}

		if existing, err := assets.FindBySerial(r.Context(), req.SerialNumber); err == nil {
			respondJSON(w, http.StatusConflict, map[string]any{
				"status":         "CONFLICT",
				"message":        "Asset with this serial number already exists",
				"existing_asset": existing,
			})
			return
		} else if err != repository.ErrNotFound {
			respondError(w, http.StatusInternalServerError, "directory error")
			return
		}

		asset := &models.Asset{
			OwnerStudentID: req.OwnerStudentID,
			SerialNumber:   req.SerialNumber,
			Brand:          req.Brand,
			Color:          req.Color,
			VisibleSpecs:   req.VisibleSpecs,
			Status:         models.AssetActive,
			RegisteredAt:   time.Now(),
		}
		if err := assets.Create(r.Context(), asset); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		// The QR payload embeds the asset id, so signing happens after the
		// insert assigns one.
		sig, err := qr.Generate(asset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		asset.QRSignature = sig
		if err := assets.Save(r.Context(), asset); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lg.Infow("asset registered", "asset_id", asset.AssetID, "owner", asset.OwnerStudentID)
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "Asset registered successfully",
			"asset":   asset,
			"qr_data": sig,
			"student": student,
		})
	}
}

func ListAssets(assets repository.AssetRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := assets.List(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "directory error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"assets": out})
	}
}

func GetAsset(assets repository.AssetRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, ok := assetFromURL(w, r, assets)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"asset": asset})
	}
}

type updateAssetReq struct {
	Status         *string `json:"status"`
	OwnerStudentID *string `json:"owner_student_id"`
}

// UpdateAsset changes status and/or owner. Reassigning the owner regenerates
// the QR signature: the old sticker's payload no longer matches the live
// record and stops verifying at the gate.
func UpdateAsset(students repository.StudentRepo, assets repository.AssetRepo, qr *gate.QRSignatures, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, ok := assetFromURL(w, r, assets)
		if !ok {
			return
		}
		var req updateAssetReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Status != nil {
			switch *req.Status {
			case models.AssetActive, models.AssetRevoked, models.AssetStolen:
				asset.Status = *req.Status
			default:
				respondError(w, http.StatusBadRequest, "unknown asset status")
				return
			}
		}
		if req.OwnerStudentID != nil {
			if _, err := students.Find(r.Context(), *req.OwnerStudentID); err != nil {
				respondError(w, http.StatusNotFound, "student not found")
				return
			}
			asset.OwnerStudentID = *req.OwnerStudentID
			sig, err := qr.Generate(asset)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "qr generation failed")
				return
			}
			asset.QRSignature = sig
		}
		if err := assets.Save(r.Context(), asset); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lg.Infow("asset updated", "asset_id", asset.AssetID)
		respondJSON(w, http.StatusOK, map[string]any{"message": "Asset updated successfully", "asset": asset})
	}
}

func DeleteAsset(assets repository.AssetRepo, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, ok := assetFromURL(w, r, assets)
		if !ok {
			return
		}
		if err := assets.Delete(r.Context(), asset.AssetID); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lg.Infow("asset deleted", "asset_id", asset.AssetID)
		respondJSON(w, http.StatusOK, map[string]any{"message": "Asset deleted successfully"})
	}
}

func assetFromURL(w http.ResponseWriter, r *http.Request, assets repository.AssetRepo) (*models.Asset, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset id")
		return nil, false
	}
	asset, err := assets.Find(r.Context(), uint(id))
	if err == repository.ErrNotFound {
		respondError(w, http.StatusNotFound, "asset not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "directory error")
		return nil, false
	}
	return asset, true
}

func ListStudents(students repository.StudentRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := students.List(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "directory error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"students": out})
	}
}

type createStudentReq struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
	Status    string `json:"status,omitempty"`
}

func CreateStudent(students repository.StudentRepo, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createStudentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.StudentID = strings.TrimSpace(req.StudentID)
		if !validStudentID(req.StudentID) || req.FullName == "" {
			respondError(w, http.StatusBadRequest, "student_id and full_name required")
			return
		}
		if req.Status == "" {
			req.Status = models.StudentActive
		}
		if req.Status != models.StudentActive && req.Status != models.StudentBlocked {
			respondError(w, http.StatusBadRequest, "unknown student status")
			return
		}
		if _, err := students.Find(r.Context(), req.StudentID); err == nil {
			respondError(w, http.StatusConflict, "student already exists")
			return
		}
		s := &models.Student{StudentID: req.StudentID, FullName: req.FullName, Status: req.Status}
		if err := students.Create(r.Context(), s); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		lg.Infow("student created", "student_id", s.StudentID)
		respondJSON(w, http.StatusCreated, map[string]any{"student": s})
	}
}

// UpdateStudentStatus is the administrative block/unblock switch.
func UpdateStudentStatus(students repository.StudentRepo, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Status != models.StudentActive && req.Status != models.StudentBlocked {
			respondError(w, http.StatusBadRequest, "unknown student status")
			return
		}
		s, err := students.Find(r.Context(), id)
		if err == repository.ErrNotFound {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "directory error")
			return
		}
		s.Status = req.Status
		if err := students.Save(r.Context(), s); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lg.Infow("student status changed", "student_id", s.StudentID, "status", s.Status)
		respondJSON(w, http.StatusOK, map[string]any{"student": s})
	}
}

func AdminStatistics(svc *gate.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Statistics(r.Context())
		if err != nil {
			lg.Errorw("statistics query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"statistics": st})
	}
}
