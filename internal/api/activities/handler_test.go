package activities

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nexocrm/nexo-backend/internal/activity"
	"github.com/nexocrm/nexo-backend/internal/activity/actorctx"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var activityCols = []string{
	"id", "action", "entity_type", "entity_id", "entity_name",
	"user_id", "user_name", "description", "metadata",
	"ip_address", "user_agent", "created_at", "avatar_url",
}

// newHandler wires a Handler over sqlmock-backed repositories: one plain DB
// for the users existence probe, one sqlx DB for the activity queries.
func newHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	usersDB, usersMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { usersDB.Close() })

	actDB, actMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { actDB.Close() })

	actRepo := repositories.NewActivityRepository(sqlx.NewDb(actDB, "postgres"))
	userRepo := repositories.NewUserRepository(usersDB)
	recorder := activity.NewRecorder(actRepo, userRepo, nil)
	service := activity.NewService(actRepo)

	return NewHandler(recorder, service, actRepo), usersMock, actMock
}

// asUser simulates the auth middleware by stamping an actor into the request
// context before the handler runs.
func asUser(userID, userName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := actorctx.WithActor(c.Request.Context(), userID, userName)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newRouter(h *Handler, authed bool) *gin.Engine {
	r := gin.New()
	group := r.Group("/api/system-activities")
	if authed {
		group.Use(asUser("U1", "Ana Silva"))
	}
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/stats", h.Stats)
	group.GET("/entity/:type/:id", h.EntityTimeline)
	group.GET("/user/:id", h.UserTimeline)
	return r
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_RecordsEntry(t *testing.T) {
	h, usersMock, actMock := newHandler(t)
	usersMock.ExpectQuery("SELECT EXISTS").
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	actMock.ExpectExec("INSERT INTO system_activities").
		WithArgs(sqlmock.AnyArg(), "CREATE", "lead", "L1", "Acme Corp",
			"U1", "Ana Silva", "Criou lead: Acme Corp",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := newRouter(h, true)
	body := `{"action":"CREATE","entityType":"lead","entityId":"L1","entityName":"Acme Corp"}`
	req := httptest.NewRequest(http.MethodPost, "/api/system-activities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if entry["description"] != "Criou lead: Acme Corp" {
		t.Errorf("description = %v", entry["description"])
	}
	if entry["userId"] != "U1" {
		t.Errorf("userId = %v, want actor from context", entry["userId"])
	}
}

func TestCreate_MissingFields(t *testing.T) {
	h, _, _ := newHandler(t)
	r := newRouter(h, true)

	body := `{"action":"CREATE"}`
	req := httptest.NewRequest(http.MethodPost, "/api/system-activities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreate_UnknownAction(t *testing.T) {
	h, _, _ := newHandler(t)
	r := newRouter(h, true)

	body := `{"action":"DESTROY","entityType":"lead","entityId":"L1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/system-activities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "DESTROY") {
		t.Errorf("error should name the rejected action, got %s", w.Body.String())
	}
}

func TestCreate_IgnoresActorInBody(t *testing.T) {
	h, usersMock, actMock := newHandler(t)
	usersMock.ExpectQuery("SELECT EXISTS").
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	actMock.ExpectExec("INSERT INTO system_activities").
		WithArgs(sqlmock.AnyArg(), "VIEW", "client", "C1", sqlmock.AnyArg(),
			"U1", "Ana Silva", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := newRouter(h, true)
	// userId in the body must not override the authenticated identity.
	body := `{"action":"VIEW","entityType":"client","entityId":"C1","userId":"attacker"}`
	req := httptest.NewRequest(http.MethodPost, "/api/system-activities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	if err := actMock.ExpectationsWereMet(); err != nil {
		t.Errorf("insert expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestList_ReturnsPaginationEnvelope(t *testing.T) {
	h, _, actMock := newHandler(t)
	actMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
	actMock.ExpectQuery("SELECT(.|\n)*FROM system_activities a").
		WithArgs(50, 50).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow("A1", "CREATE", "lead", "L1", "Acme Corp",
				"U1", "Ana Silva", "Criou lead: Acme Corp", nil,
				nil, nil, time.Now(), nil))

	r := newRouter(h, true)
	req := httptest.NewRequest(http.MethodGet, "/api/system-activities?page=2&limit=50", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Activities []json.RawMessage  `json:"activities"`
		Pagination paginationEnvelope `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Pagination.Page != 2 || resp.Pagination.Limit != 50 {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
	if resp.Pagination.Total != 120 || resp.Pagination.Pages != 3 {
		t.Errorf("pagination totals = %+v, want total 120 pages 3", resp.Pagination)
	}
	if len(resp.Activities) != 1 {
		t.Errorf("activities = %d entries, want 1", len(resp.Activities))
	}
}

func TestList_DateFilter(t *testing.T) {
	h, _, actMock := newHandler(t)
	h.now = func() time.Time {
		return time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	}

	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	actMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").
		WithArgs(today.AddDate(0, 0, -1), today).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	actMock.ExpectQuery("SELECT(.|\n)*FROM system_activities a").
		WithArgs(today.AddDate(0, 0, -1), today, 50, 0).
		WillReturnRows(sqlmock.NewRows(activityCols))

	r := newRouter(h, true)
	req := httptest.NewRequest(http.MethodGet, "/api/system-activities?date=yesterday", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if err := actMock.ExpectationsWereMet(); err != nil {
		t.Errorf("query expectations: %v", err)
	}
}

func TestList_UnknownDateFilter(t *testing.T) {
	h, _, _ := newHandler(t)
	r := newRouter(h, true)

	req := httptest.NewRequest(http.MethodGet, "/api/system-activities?date=fortnight", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDateRange(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"today", today, today.AddDate(0, 0, 1)},
		{"yesterday", today.AddDate(0, 0, -1), today},
		{"last7days", today.AddDate(0, 0, -7), today.AddDate(0, 0, 1)},
		{"last30days", today.AddDate(0, 0, -30), today.AddDate(0, 0, 1)},
		{"thismonth", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"lastmonth", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, ok := dateRange(tc.name, now)
			if !ok {
				t.Fatalf("dateRange(%q) not ok", tc.name)
			}
			if !start.Equal(tc.start) || !end.Equal(tc.end) {
				t.Errorf("dateRange(%q) = [%v, %v), want [%v, %v)", tc.name, start, end, tc.start, tc.end)
			}
		})
	}

	if _, _, ok := dateRange("fortnight", now); ok {
		t.Error("unknown filter should not resolve")
	}
}

// ---------------------------------------------------------------------------
// Timelines and stats
// ---------------------------------------------------------------------------

func TestEntityTimeline(t *testing.T) {
	h, _, actMock := newHandler(t)
	actMock.ExpectQuery("SELECT(.|\n)*WHERE a.entity_type").
		WithArgs("lead", "L1", 20).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow("A1", "UPDATE", "lead", "L1", "Acme Corp",
				"U1", "Ana Silva", "Atualizou lead: Acme Corp", nil,
				nil, nil, time.Now(), nil))

	r := newRouter(h, true)
	req := httptest.NewRequest(http.MethodGet, "/api/system-activities/entity/lead/L1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Atualizou lead: Acme Corp") {
		t.Errorf("body missing timeline entry: %s", w.Body.String())
	}
}

func TestUserTimeline(t *testing.T) {
	h, _, actMock := newHandler(t)
	actMock.ExpectQuery("SELECT(.|\n)*WHERE a.user_id").
		WithArgs("U1", 20).
		WillReturnRows(sqlmock.NewRows(activityCols))

	r := newRouter(h, true)
	req := httptest.NewRequest(http.MethodGet, "/api/system-activities/user/U1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestStats_RepositoryError(t *testing.T) {
	h, _, actMock := newHandler(t)
	actMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM system_activities").
		WillReturnError(errDB)

	r := newRouter(h, true)
	req := httptest.NewRequest(http.MethodGet, "/api/system-activities/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
