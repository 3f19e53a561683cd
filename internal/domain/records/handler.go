package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"child-health-history/internal/domain/accessgrants"
	"child-health-history/internal/domain/children"
	"child-health-history/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) {
	r.Route("/children/{childID}/records", func(rr chi.Router) {
		rr.Post("/", createRecordHandler(svc, childrenSvc, grantsSvc))
		rr.Get("/", listRecordsHandler(svc, childrenSvc, grantsSvc))
		rr.Get("/{recordID}", getRecordHandler(svc, childrenSvc, grantsSvc))
		rr.Patch("/{recordID}/status", setStatusHandler(svc, childrenSvc, grantsSvc))
	})
}

type createRecordRequest struct {
	Type  string     `json:"type" enums:"VACCINE,APPOINTMENT,MEASUREMENT,NOTE"`
	Title string     `json:"title"`
	Notes string     `json:"notes"`
	DueAt *time.Time `json:"due_at,omitempty"`
	Value string     `json:"value,omitempty"`
	Unit  string     `json:"unit,omitempty"`
}

type setStatusRequest struct {
	Status    string     `json:"status" enums:"pending,applied,skipped"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

type recordResponse struct {
	ID        string     `json:"id"`
	ChildID   string     `json:"child_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Value     string     `json:"value,omitempty"`
	Unit      string     `json:"unit,omitempty"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// authorize: el cuidador principal pasa directo; un delegado necesita un grant
// activo con el scope pedido. Devuelve el userID del caller.
func authorize(w http.ResponseWriter, r *http.Request, childrenSvc *children.Service, grantsSvc *accessgrants.Service, childID string, scope accessgrants.Scope) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	ownerID, err := childrenSvc.OwnerOf(r.Context(), childID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "child not found", http.StatusNotFound)
		return "", false
	}

	if ownerID != claims.UserID {
		g, err := grantsSvc.GetActiveGrant(r.Context(), childID, claims.UserID)
		if err != nil || !accessgrants.HasScope(g, scope) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return "", false
		}
	}
	return claims.UserID, true
}

// createRecordHandler godoc
// @Summary Cargar una entrada en la historia
// @Description Crea un registro (vacuna, turno, medición o nota) en estado pending. Delegados necesitan scope records:create.
// @Tags records
// @Accept json
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param payload body createRecordRequest true "Datos del registro"
// @Success 201 {object} recordResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /children/{childID}/records [post]
func createRecordHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		userID, ok := authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeRecordsCreate)
		if !ok {
			return
		}

		var req createRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		rec, err := svc.Create(r.Context(), childID, userID, CreateInput{
			Type:  RecordType(strings.TrimSpace(req.Type)),
			Title: req.Title,
			Notes: req.Notes,
			DueAt: req.DueAt,
			Value: req.Value,
			Unit:  req.Unit,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listRecordsHandler godoc
// @Summary Listar la historia de un perfil
// @Description Filtros opcionales: type, from/to (RFC3339 sobre due_at), limit.
// @Tags records
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param type query string false "VACCINE|APPOINTMENT|MEASUREMENT|NOTE"
// @Param from query string false "RFC3339"
// @Param to query string false "RFC3339"
// @Param limit query int false "default 100"
// @Success 200 {array} recordResponse
// @Failure 400 {string} string "filtros inválidos"
// @Failure 403 {string} string "forbidden"
// @Router /children/{childID}/records [get]
func listRecordsHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if _, ok := authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeRecordsRead); !ok {
			return
		}

		var f ListFilter
		q := r.URL.Query()

		if raw := strings.TrimSpace(q.Get("type")); raw != "" {
			f.Type = RecordType(raw)
		}
		if raw := strings.TrimSpace(q.Get("from")); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "from must be RFC3339", http.StatusBadRequest)
				return
			}
			f.From = &t
		}
		if raw := strings.TrimSpace(q.Get("to")); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "to must be RFC3339", http.StatusBadRequest)
				return
			}
			f.To = &t
		}
		if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			f.Limit = n
		}

		items, err := svc.ListByChild(r.Context(), childID, f)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getRecordHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if _, ok := authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeRecordsRead); !ok {
			return
		}

		rec, err := svc.GetByID(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil || rec.ChildID != childID {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

// setStatusHandler godoc
// @Summary Cambiar el estado de un registro
// @Description Flag manual: pending/applied/skipped, cualquier dirección. applied acepta applied_at explícito (default: ahora).
// @Tags records
// @Accept json
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param recordID path string true "ID del registro"
// @Param payload body setStatusRequest true "Nuevo estado"
// @Success 200 {object} recordResponse
// @Failure 400 {string} string "estado inválido"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "record not found"
// @Router /children/{childID}/records/{recordID}/status [patch]
func setStatusHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if _, ok := authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeRecordsStatus); !ok {
			return
		}

		current, err := svc.GetByID(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil || current.ChildID != childID {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}

		var req setStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		rec, err := svc.SetStatus(r.Context(), current.ID, RecordStatus(strings.TrimSpace(req.Status)), req.AppliedAt)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		ChildID:   rec.ChildID,
		Type:      string(rec.Type),
		Title:     rec.Title,
		Notes:     rec.Notes,
		DueAt:     rec.DueAt,
		AppliedAt: rec.AppliedAt,
		Value:     rec.Value,
		Unit:      rec.Unit,
		Status:    string(rec.Status),
		CreatedBy: rec.CreatedBy,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
