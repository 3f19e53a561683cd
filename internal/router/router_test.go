package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"child-health-history/internal/domain/accessgrants"
	"child-health-history/internal/router"
)

func TestHTTP_EndToEnd_MedicationSchedule(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"

	childID := createChild(t, ts.URL, ownerID, map[string]any{
		"name": "Emma",
		"sex":  "female",
	})

	// Medicamento con regla de intervalo: cada 6h entre 08:00 y 20:00
	medID := createMedication(t, ts.URL, ownerID, childID, map[string]any{
		"name":      "Amoxicilina",
		"dose":      5,
		"dose_unit": "ml",
		"rule": map[string]any{
			"kind":          "interval",
			"every_minutes": 360,
			"window_start":  "08:00",
			"window_end":    "20:00",
		},
		"start_date":    "2026-04-01",
		"schedule_days": 3,
	})

	// Proyección completa del tratamiento: 3 días x 3 tomas (08/14/20)
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications/"+medID+"/schedule", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 schedule, got %d body=%s", st, string(body))
		}

		var resp struct {
			Occurrences []struct {
				Date string `json:"date"`
				Time string `json:"time"`
			} `json:"occurrences"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal schedule: %v", err)
		}
		if len(resp.Occurrences) != 9 {
			t.Fatalf("expected 9 occurrences, got %d", len(resp.Occurrences))
		}
		if resp.Occurrences[0].Date != "2026-04-01" || resp.Occurrences[0].Time != "08:00" {
			t.Fatalf("unexpected first occurrence: %+v", resp.Occurrences[0])
		}
		if last := resp.Occurrences[8]; last.Date != "2026-04-03" || last.Time != "20:00" {
			t.Fatalf("unexpected last occurrence: %+v", last)
		}
	}

	// Rango pedido fuera del tratamiento => vacío
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications/"+medID+"/schedule?from=2026-05-01&to=2026-05-10", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 disjoint schedule, got %d body=%s", st, string(body))
		}
		var resp struct {
			Occurrences []any `json:"occurrences"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Occurrences) != 0 {
			t.Fatalf("expected empty occurrences, got %d", len(resp.Occurrences))
		}
	}

	// Rango invertido => 400
	{
		st, _ := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications/"+medID+"/schedule?from=2026-04-03&to=2026-04-01", ownerID, nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 inverted range, got %d", st)
		}
	}

	// Status a media mañana: tomó la de 08:00, la próxima es 14:00
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications/"+medID+"/status?date=2026-04-02&at=10:30", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 status, got %d body=%s", st, string(body))
		}

		var resp struct {
			Active    bool     `json:"active"`
			Slots     []string `json:"slots"`
			LastTaken *string  `json:"last_taken"`
			NextDue   *string  `json:"next_due"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal status: %v", err)
		}
		if !resp.Active {
			t.Fatalf("expected active treatment")
		}
		if len(resp.Slots) != 3 {
			t.Fatalf("expected 3 slots, got %v", resp.Slots)
		}
		if resp.LastTaken == nil || *resp.LastTaken != "08:00" {
			t.Fatalf("expected last_taken 08:00, got %v", resp.LastTaken)
		}
		if resp.NextDue == nil || *resp.NextDue != "14:00" {
			t.Fatalf("expected next_due 14:00, got %v", resp.NextDue)
		}
	}

	// Después de la última toma del día: next_due null
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications/"+medID+"/status?date=2026-04-02&at=21:00", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 status, got %d body=%s", st, string(body))
		}
		var resp struct {
			LastTaken *string `json:"last_taken"`
			NextDue   *string `json:"next_due"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.LastTaken == nil || *resp.LastTaken != "20:00" {
			t.Fatalf("expected last_taken 20:00, got %v", resp.LastTaken)
		}
		if resp.NextDue != nil {
			t.Fatalf("expected next_due null after last dose, got %v", *resp.NextDue)
		}
	}

	// Regla rota en create => 400 vía dosing.ErrInvalidRule
	{
		st, _ := doReq(t, ts.URL, "POST", "/children/"+childID+"/medications", ownerID, map[string]any{
			"name":      "Ibuprofeno",
			"dose":      2.5,
			"dose_unit": "ml",
			"rule": map[string]any{
				"kind":          "interval",
				"every_minutes": 0,
				"window_start":  "08:00",
				"window_end":    "20:00",
			},
			"start_date": "2026-04-01",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for broken rule, got %d", st)
		}
	}
}

func TestHTTP_EndToEnd_DelegationScopes(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"
	delegateID := "delegate-1"

	childID := createChild(t, ts.URL, ownerID, map[string]any{
		"name": "Tomás",
		"sex":  "male",
	})

	medPayload := map[string]any{
		"name":      "Paracetamol",
		"dose":      3,
		"dose_unit": "ml",
		"rule": map[string]any{
			"kind":  "explicit",
			"times": []string{"09:00", "21:00"},
		},
		"start_date": "2026-04-01",
	}

	// 1) Delegado sin grant no ve nada del perfil
	{
		st, _ := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications", delegateID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before grant, got %d", st)
		}
	}

	// 2) Owner invita con meds:read solamente
	grantID := inviteGrant(t, ts.URL, ownerID, childID, delegateID, []string{
		string(accessgrants.ScopeChildRead),
		string(accessgrants.ScopeMedsRead),
	})

	// 3) Invitación pendiente todavía no habilita nada
	{
		st, _ := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications", delegateID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 with pending invite, got %d", st)
		}
	}

	// 4) Delegado acepta
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/accept", delegateID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 accept, got %d body=%s", st, string(body))
		}
	}

	// 5) Ahora puede listar medicamentos...
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/medications", delegateID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list meds by delegate, got %d body=%s", st, string(body))
		}
	}

	// 6) ...pero no crear (falta meds:manage)
	{
		st, _ := doReq(t, ts.URL, "POST", "/children/"+childID+"/medications", delegateID, medPayload)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 create med without meds:manage, got %d", st)
		}
	}

	// 7) Owner amplía scopes re-invitando (dedup sobre el mismo grant)
	{
		_ = inviteGrant(t, ts.URL, ownerID, childID, delegateID, []string{
			string(accessgrants.ScopeChildRead),
			string(accessgrants.ScopeMedsRead),
			string(accessgrants.ScopeMedsManage),
		})
		// el re-invite actualiza scopes sobre el grant activo; accept es idempotente
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/accept", delegateID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 idempotent accept, got %d body=%s", st, string(body))
		}
	}

	// 8) Con meds:manage ya puede crear
	{
		st, body := doReq(t, ts.URL, "POST", "/children/"+childID+"/medications", delegateID, medPayload)
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create med by delegate, got %d body=%s", st, string(body))
		}
	}

	// 9) Owner revoca; el delegado pierde acceso
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/revoke", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke, got %d body=%s", st, string(body))
		}

		st, _ = doReq(t, ts.URL, "GET", "/children/"+childID+"/medications", delegateID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 after revoke, got %d", st)
		}
	}
}

func TestHTTP_EndToEnd_RecordsFlow(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"

	childID := createChild(t, ts.URL, ownerID, map[string]any{
		"name": "Lucía",
		"sex":  "female",
	})

	// Crear registro de vacuna
	var recordID string
	{
		st, body := doReq(t, ts.URL, "POST", "/children/"+childID+"/records", ownerID, map[string]any{
			"type":  "VACCINE",
			"title": "Pentavalente 2da dosis",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create record, got %d body=%s", st, string(body))
		}
		var resp struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Status != "pending" {
			t.Fatalf("expected pending, got %s", resp.Status)
		}
		recordID = resp.ID
	}

	// Marcar applied
	{
		st, body := doReq(t, ts.URL, "PATCH", "/children/"+childID+"/records/"+recordID+"/status", ownerID, map[string]any{
			"status": "applied",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 set status, got %d body=%s", st, string(body))
		}
		var resp struct {
			Status    string  `json:"status"`
			AppliedAt *string `json:"applied_at"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Status != "applied" || resp.AppliedAt == nil {
			t.Fatalf("expected applied with applied_at, got %+v", resp)
		}
	}

	// Filtro por tipo
	{
		st, body := doReq(t, ts.URL, "GET", "/children/"+childID+"/records?type=VACCINE", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list records, got %d body=%s", st, string(body))
		}
		var items []map[string]any
		if err := json.Unmarshal(body, &items); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 vaccine record, got %d", len(items))
		}
	}

	// Estado desconocido => 400
	{
		st, _ := doReq(t, ts.URL, "PATCH", "/children/"+childID+"/records/"+recordID+"/status", ownerID, map[string]any{
			"status": "done",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 unknown status, got %d", st)
		}
	}
}

// -------------------------
// Helpers
// -------------------------

func doReq(t *testing.T, baseURL, method, path, userID string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func createChild(t *testing.T, baseURL, ownerID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/children", ownerID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create child, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal child: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("child id missing in response: %s", string(body))
	}
	return resp.ID
}

func createMedication(t *testing.T, baseURL, ownerID, childID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/children/"+childID+"/medications", ownerID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create medication, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal medication: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("medication id missing in response: %s", string(body))
	}
	return resp.ID
}

func inviteGrant(t *testing.T, baseURL, ownerID, childID, granteeID string, scopes []string) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/children/"+childID+"/grants", ownerID, map[string]any{
		"grantee_user_id": granteeID,
		"scopes":          scopes,
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 invite grant, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal grant: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("grant id missing in response: %s", string(body))
	}
	return resp.ID
}
