package children

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"child-health-history/internal/domain/accessgrants"
	"child-health-history/internal/middleware"
	"child-health-history/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

// freeProfileLimit es la cantidad de perfiles incluida en el plan gratuito.
// Pasado el límite se exige la capability children.extra_profiles.
const (
	freeProfileLimit = 3
	capExtraProfiles = "children.extra_profiles"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *accessgrants.Service, caps capabilities.Resolver) {
	r.Route("/children", func(cr chi.Router) {
		cr.Post("/", createChildHandler(svc, caps))
		cr.Get("/", listChildrenHandler(svc))

		// Perfil (cuidador principal o delegado con child:read)
		cr.Get("/{childID}", getChildHandler(svc, grantsSvc))

		// Editar perfil (cuidador principal o delegado con child:edit_profile)
		cr.Patch("/{childID}", updateChildHandler(svc, grantsSvc))
	})

	// Perfiles compartidos conmigo (delegado)
	r.Get("/me/children", listMySharedChildrenHandler(svc, grantsSvc))
}

type createChildRequest struct {
	Name      string `json:"name"`
	Sex       string `json:"sex" enums:"male,female,unspecified"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD opcional
	BloodType string `json:"blood_type"`
	Allergies string `json:"allergies"`
	Notes     string `json:"notes"`
}

type childResponse struct {
	ID              string     `json:"id"`
	CaregiverUserID string     `json:"caregiver_user_id"`
	Name            string     `json:"name"`
	Sex             string     `json:"sex"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	BloodType       string     `json:"blood_type,omitempty"`
	Allergies       string     `json:"allergies,omitempty"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type updateChildRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string `json:"name"`
	Sex       *string `json:"sex"`
	BirthDate *string `json:"birth_date"` // YYYY-MM-DD; null limpia el valor
	BloodType *string `json:"blood_type"`
	Allergies *string `json:"allergies"`
	Notes     *string `json:"notes"`
}

type sharedChildResponse struct {
	Child  childResponse        `json:"child"`
	Grant  sharedGrantSummary   `json:"grant"`
	Scopes []accessgrants.Scope `json:"scopes"` // redundante pero útil para la UI
}

type sharedGrantSummary struct {
	ID     string              `json:"id"`
	Status accessgrants.Status `json:"status"`
}

// createChildHandler godoc
// @Summary Crear perfil de niño/a
// @Description Crea un perfil para el cuidador autenticado. Pasado el límite gratuito se exige la capability children.extra_profiles del plan.
// @Tags children
// @Accept json
// @Produce json
// @Param payload body createChildRequest true "Datos del perfil; birth_date en YYYY-MM-DD"
// @Success 201 {object} childResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "profile limit reached"
// @Router /children [post]
func createChildHandler(svc *Service, caps capabilities.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createChildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &t
		}

		// Gate de plan: con resolver configurado, pasar el límite gratuito
		// requiere la capability. Sin resolver (dev) no se gatea.
		if caps != nil {
			existing, err := svc.ListByCaregiver(r.Context(), claims.UserID)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if len(existing) >= freeProfileLimit {
				has, err := caps.Has(r.Context(), claims.UserID, capExtraProfiles)
				if err != nil || !has {
					http.Error(w, "profile limit reached", http.StatusForbidden)
					return
				}
			}
		}

		c, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:      req.Name,
			Sex:       req.Sex,
			BirthDate: bd,
			BloodType: req.BloodType,
			Allergies: req.Allergies,
			Notes:     req.Notes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toChildResponse(c))
	}
}

// listChildrenHandler godoc
// @Summary Listar mis perfiles
// @Tags children
// @Produce json
// @Success 200 {array} childResponse
// @Failure 401 {string} string "unauthorized"
// @Router /children [get]
func listChildrenHandler(svc *Service) http.HandlerFunc {
	// Solo perfiles propios (los compartidos van por /me/children)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByCaregiver(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]childResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toChildResponse(c))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func getChildHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	// Cuidador principal pasa directo; delegado requiere child:read
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		c, err := svc.GetByID(r.Context(), childID)
		if err != nil {
			http.Error(w, "child not found", http.StatusNotFound)
			return
		}

		if c.CaregiverUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), childID, claims.UserID)
			if err != nil || !accessgrants.HasScope(g, accessgrants.ScopeChildRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		writeJSON(w, http.StatusOK, toChildResponse(c))
	}
}

func updateChildHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		current, err := svc.GetByID(r.Context(), childID)
		if err != nil {
			http.Error(w, "child not found", http.StatusNotFound)
			return
		}

		if current.CaregiverUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), childID, claims.UserID)
			if err != nil || !accessgrants.HasScope(g, accessgrants.ScopeChildEditProfile) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		// Decodificar a map primero para detectar presencia de birth_date
		// (distinguir "no enviado" de "null = limpiar").
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var req updateChildRequest
		{
			b, _ := json.Marshal(raw)
			if err := json.Unmarshal(b, &req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		bd := PatchDate{}
		if v, exists := raw["birth_date"]; exists {
			bd.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				t, err := time.Parse("2006-01-02", s)
				if err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				bd.Value = &t
			}
		}

		updated, err := svc.UpdateProfile(r.Context(), childID, UpdateProfileInput{
			Name:      req.Name,
			Sex:       req.Sex,
			BirthDate: bd,
			BloodType: req.BloodType,
			Allergies: req.Allergies,
			Notes:     req.Notes,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "child not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toChildResponse(updated))
	}
}

func listMySharedChildrenHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	// Perfiles compartidos conmigo (grants activos con child:read)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := grantsSvc.ListByGrantee(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		seen := map[string]struct{}{}
		out := make([]sharedChildResponse, 0)

		for _, g := range grants {
			if g.Status != accessgrants.StatusActive {
				continue
			}
			if !accessgrants.HasScope(g, accessgrants.ScopeChildRead) {
				continue
			}
			if _, ok := seen[g.ChildID]; ok {
				continue
			}
			seen[g.ChildID] = struct{}{}

			c, err := svc.GetByID(r.Context(), g.ChildID)
			if err != nil {
				// tolera grants huérfanos
				continue
			}

			out = append(out, sharedChildResponse{
				Child: toChildResponse(c),
				Grant: sharedGrantSummary{
					ID:     g.ID,
					Status: g.Status,
				},
				Scopes: g.Scopes,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toChildResponse(c Child) childResponse {
	return childResponse{
		ID:              c.ID,
		CaregiverUserID: c.CaregiverUserID,
		Name:            c.Name,
		Sex:             string(c.Sex),
		BirthDate:       c.BirthDate,
		BloodType:       string(c.BloodType),
		Allergies:       c.Allergies,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// writeJSON se repite en los handlers de cada módulo a propósito;
// cuando aparezca en uno más, se extrae a un helper común.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
