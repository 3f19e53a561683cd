package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"child-health-history/internal/domain/accessgrants"
	"child-health-history/internal/domain/children"
	"child-health-history/internal/dosing"
	"child-health-history/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) {
	r.Route("/children/{childID}/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc, childrenSvc, grantsSvc))
		mr.Get("/", listMedicationsHandler(svc, childrenSvc, grantsSvc))

		mr.Route("/{medID}", func(ir chi.Router) {
			ir.Get("/", getMedicationHandler(svc, childrenSvc, grantsSvc))
			ir.Patch("/", updateMedicationHandler(svc, childrenSvc, grantsSvc))
			ir.Delete("/", deleteMedicationHandler(svc, childrenSvc, grantsSvc))

			// Vistas del motor de horarios
			ir.Get("/schedule", scheduleHandler(svc, childrenSvc, grantsSvc))
			ir.Get("/status", statusHandler(svc, childrenSvc, grantsSvc))
		})
	})
}

// ruleDTO es la forma JSON de la regla de dosificación.
// kind=explicit usa times; kind=interval usa every_minutes + window_*.
type ruleDTO struct {
	Kind         string   `json:"kind" enums:"explicit,interval"`
	Times        []string `json:"times,omitempty"`         // "HH:MM"
	EveryMinutes int      `json:"every_minutes,omitempty"` // > 0
	WindowStart  string   `json:"window_start,omitempty"`  // "HH:MM"
	WindowEnd    string   `json:"window_end,omitempty"`    // "HH:MM"
}

func (d ruleDTO) toRule() (dosing.Rule, error) {
	switch strings.TrimSpace(d.Kind) {
	case "explicit":
		times := make([]dosing.ClockTime, 0, len(d.Times))
		for _, raw := range d.Times {
			t, err := dosing.ParseClockTime(strings.TrimSpace(raw))
			if err != nil {
				return nil, err
			}
			times = append(times, t)
		}
		return dosing.Explicit{Times: times}, nil

	case "interval":
		start, err := dosing.ParseClockTime(strings.TrimSpace(d.WindowStart))
		if err != nil {
			return nil, err
		}
		end, err := dosing.ParseClockTime(strings.TrimSpace(d.WindowEnd))
		if err != nil {
			return nil, err
		}
		return dosing.Interval{
			EveryMinutes: d.EveryMinutes,
			WindowStart:  start,
			WindowEnd:    end,
		}, nil

	default:
		return nil, errors.New("rule.kind must be explicit or interval")
	}
}

func ruleToDTO(r dosing.Rule) ruleDTO {
	switch v := r.(type) {
	case dosing.Explicit:
		times := make([]string, 0, len(v.Times))
		for _, t := range v.Times {
			times = append(times, t.String())
		}
		return ruleDTO{Kind: "explicit", Times: times}
	case dosing.Interval:
		return ruleDTO{
			Kind:         "interval",
			EveryMinutes: v.EveryMinutes,
			WindowStart:  v.WindowStart.String(),
			WindowEnd:    v.WindowEnd.String(),
		}
	default:
		return ruleDTO{}
	}
}

type createMedicationRequest struct {
	Name         string  `json:"name"`
	Dose         float64 `json:"dose"`
	DoseUnit     string  `json:"dose_unit"`
	Rule         ruleDTO `json:"rule"`
	StartDate    string  `json:"start_date"`         // YYYY-MM-DD
	EndDate      string  `json:"end_date,omitempty"` // YYYY-MM-DD opcional
	ScheduleDays int     `json:"schedule_days,omitempty"`
	Notes        string  `json:"notes"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name         *string  `json:"name"`
	Dose         *float64 `json:"dose"`
	DoseUnit     *string  `json:"dose_unit"`
	Rule         *ruleDTO `json:"rule"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"` // null = pasar a tratamiento abierto
	ScheduleDays *int     `json:"schedule_days"`
	Notes        *string  `json:"notes"`
}

type medicationResponse struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"child_id"`
	Name         string    `json:"name"`
	Dose         float64   `json:"dose"`
	DoseUnit     string    `json:"dose_unit"`
	Rule         ruleDTO   `json:"rule"`
	StartDate    string    `json:"start_date"`
	EndDate      *string   `json:"end_date,omitempty"`
	ScheduleDays int       `json:"schedule_days"`
	Active       bool      `json:"active"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type occurrenceDTO struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

type scheduleResponse struct {
	MedicationID string          `json:"medication_id"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Occurrences  []occurrenceDTO `json:"occurrences"`
}

type statusResponse struct {
	MedicationID string   `json:"medication_id"`
	Date         string   `json:"date"`
	At           string   `json:"at"`
	Active       bool     `json:"active"`
	Slots        []string `json:"slots"`
	LastTaken    *string  `json:"last_taken"` // null = hoy todavía no tocó ninguna
	NextDue      *string  `json:"next_due"`   // null = no quedan dosis hoy
}

// authorize resuelve el permiso sobre el perfil: el cuidador principal pasa
// directo, un delegado necesita un grant activo con el scope pedido.
// Devuelve ok=false con la respuesta ya escrita.
func authorize(w http.ResponseWriter, r *http.Request, childrenSvc *children.Service, grantsSvc *accessgrants.Service, childID string, scope accessgrants.Scope) bool {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}

	ownerID, err := childrenSvc.OwnerOf(r.Context(), childID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "child not found", http.StatusNotFound)
		return false
	}

	if ownerID != claims.UserID {
		g, err := grantsSvc.GetActiveGrant(r.Context(), childID, claims.UserID)
		if err != nil || !accessgrants.HasScope(g, scope) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return false
		}
	}
	return true
}

// createMedicationHandler godoc
// @Summary Registrar medicamento
// @Description Crea un medicamento con su regla de dosificación tipada. El cuidador principal siempre puede; un delegado necesita scope meds:manage.
// @Tags medications
// @Accept json
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param payload body createMedicationRequest true "Datos del medicamento; fechas en YYYY-MM-DD, horas en HH:MM"
// @Success 201 {object} medicationResponse
// @Failure 400 {string} string "invalid json / invalid rule / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "child not found"
// @Router /children/{childID}/medications [post]
func createMedicationHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsManage) {
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		rule, err := req.Rule.toRule()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		start, err := dosing.ParseDate(req.StartDate)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		var end *dosing.Date
		if strings.TrimSpace(req.EndDate) != "" {
			d, err := dosing.ParseDate(req.EndDate)
			if err != nil {
				http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			end = &d
		}

		m, err := svc.Create(r.Context(), childID, CreateInput{
			Name:         req.Name,
			Dose:         req.Dose,
			DoseUnit:     req.DoseUnit,
			Rule:         rule,
			StartDate:    start,
			EndDate:      end,
			ScheduleDays: req.ScheduleDays,
			Notes:        req.Notes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m, todayLocal()))
	}
}

// listMedicationsHandler godoc
// @Summary Listar medicamentos de un perfil
// @Tags medications
// @Produce json
// @Param childID path string true "ID del perfil"
// @Success 200 {array} medicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /children/{childID}/medications [get]
func listMedicationsHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsRead) {
			return
		}

		items, err := svc.ListByChild(r.Context(), childID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		today := todayLocal()
		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getMedicationHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsRead) {
			return
		}

		m, err := fetchForChild(r, svc, childID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m, todayLocal()))
	}
}

func updateMedicationHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsManage) {
			return
		}

		current, err := fetchForChild(r, svc, childID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// Map primero para detectar presencia de end_date ("null" limpia).
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var req updateMedicationRequest
		{
			b, _ := json.Marshal(raw)
			if err := json.Unmarshal(b, &req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		in := UpdateInput{
			Name:         req.Name,
			Dose:         req.Dose,
			DoseUnit:     req.DoseUnit,
			ScheduleDays: req.ScheduleDays,
			Notes:        req.Notes,
		}

		if req.Rule != nil {
			rule, err := req.Rule.toRule()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			in.Rule = rule
		}

		if req.StartDate != nil {
			d, err := dosing.ParseDate(*req.StartDate)
			if err != nil {
				http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			in.StartDate = &d
		}

		if v, exists := raw["end_date"]; exists {
			in.EndDate.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "end_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				d, err := dosing.ParseDate(s)
				if err != nil {
					http.Error(w, "end_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				in.EndDate.Value = &d
			}
		}

		updated, err := svc.Update(r.Context(), current.ID, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(updated, todayLocal()))
	}
}

func deleteMedicationHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsManage) {
			return
		}

		m, err := fetchForChild(r, svc, childID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if err := svc.Delete(r.Context(), m.ID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// scheduleHandler godoc
// @Summary Proyección de tomas de un medicamento
// @Description Expande la regla sobre el rango pedido (default: el rango efectivo del tratamiento). El rango se recorta al tratamiento; si no intersecta, devuelve vacío.
// @Tags medications
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param medID path string true "ID del medicamento"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} scheduleResponse
// @Failure 400 {string} string "rango inválido"
// @Failure 404 {string} string "medication not found"
// @Failure 422 {string} string "proyección supera el techo de ocurrencias"
// @Router /children/{childID}/medications/{medID}/schedule [get]
func scheduleHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsRead) {
			return
		}

		m, err := fetchForChild(r, svc, childID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// Defaults: el rango efectivo completo del tratamiento.
		from := m.StartDate
		to := m.Schedule().EffectiveEnd()

		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			d, err := dosing.ParseDate(raw)
			if err != nil {
				http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			from = d
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
			d, err := dosing.ParseDate(raw)
			if err != nil {
				http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			to = d
		}

		_, occ, err := svc.ProjectSchedule(r.Context(), m.ID, from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]occurrenceDTO, 0, len(occ))
		for _, o := range occ {
			out = append(out, occurrenceDTO{Date: o.Date.String(), Time: o.Slot.String()})
		}

		writeJSON(w, http.StatusOK, scheduleResponse{
			MedicationID: m.ID,
			From:         from.String(),
			To:           to.String(),
			Occurrences:  out,
		})
	}
}

// statusHandler godoc
// @Summary Última/próxima toma de un medicamento
// @Description Clasifica las tomas del día contra la hora dada (default: ahora, hora local del server). slots permite a la UI resolver el rollover a mañana.
// @Tags medications
// @Produce json
// @Param childID path string true "ID del perfil"
// @Param medID path string true "ID del medicamento"
// @Param date query string false "YYYY-MM-DD (default hoy)"
// @Param at query string false "HH:MM (default ahora)"
// @Success 200 {object} statusResponse
// @Failure 400 {string} string "date/at inválidos"
// @Failure 404 {string} string "medication not found"
// @Router /children/{childID}/medications/{medID}/status [get]
func statusHandler(svc *Service, childrenSvc *children.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, childrenSvc, grantsSvc, childID, accessgrants.ScopeMedsRead) {
			return
		}

		m, err := fetchForChild(r, svc, childID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// El motor no lee el reloj; el default "ahora" se resuelve acá.
		now := time.Now()
		date := dosing.DateOf(now)
		at := dosing.ClockTimeOf(now)

		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			d, err := dosing.ParseDate(raw)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = d
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
			t, err := dosing.ParseClockTime(raw)
			if err != nil {
				http.Error(w, "at must be HH:MM", http.StatusBadRequest)
				return
			}
			at = t
		}

		_, st, err := svc.StatusAt(r.Context(), m.ID, date, at)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		slots := make([]string, 0, len(st.Slots))
		for _, s := range st.Slots {
			slots = append(slots, s.String())
		}

		resp := statusResponse{
			MedicationID: m.ID,
			Date:         st.Date.String(),
			At:           st.At.String(),
			Active:       st.Active,
			Slots:        slots,
		}
		if st.Status.LastTaken != nil {
			v := st.Status.LastTaken.String()
			resp.LastTaken = &v
		}
		if st.Status.NextDue != nil {
			v := st.Status.NextDue.String()
			resp.NextDue = &v
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// fetchForChild trae el medicamento y verifica que pertenezca al perfil de la
// URL (un medID ajeno no debe filtrar datos de otro niño).
func fetchForChild(r *http.Request, svc *Service, childID string) (Medication, error) {
	m, err := svc.GetByID(r.Context(), chi.URLParam(r, "medID"))
	if err != nil {
		return Medication{}, err
	}
	if m.ChildID != childID {
		return Medication{}, ErrNotFound
	}
	return m, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, dosing.ErrInvalidRule),
		errors.Is(err, dosing.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dosing.ErrOccurrenceCeiling):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "medication not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func todayLocal() dosing.Date {
	return dosing.DateOf(time.Now())
}

func toMedicationResponse(m Medication, today dosing.Date) medicationResponse {
	resp := medicationResponse{
		ID:           m.ID,
		ChildID:      m.ChildID,
		Name:         m.Name,
		Dose:         m.Dose,
		DoseUnit:     m.DoseUnit,
		Rule:         ruleToDTO(m.Rule),
		StartDate:    m.StartDate.String(),
		ScheduleDays: m.ScheduleDays,
		Active:       m.ActiveOn(today),
		Notes:        m.Notes,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.EndDate != nil {
		v := m.EndDate.String()
		resp.EndDate = &v
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
