package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sala.org/internal/auth"
)

func TestLevelTypeUpdateCanSetOrderToZero(t *testing.T) {
	api, mock, codec := newTestAPI(t)
	token, _, err := codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	now := time.Now().UTC()

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(activeUserRow())
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRowsWith(auth.PermLevelUpdate))
	mock.ExpectQuery("select (.+) from level_types where id=").
		WithArgs("lt-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "name_en", "name_kh", "level_order", "is_active", "created_at", "updated_at",
		}).AddRow("lt-1", "NATIONAL", "National", "", 5, true, now, now))
	mock.ExpectExec("update level_types set").
		WithArgs("lt-1", "NATIONAL", "National", "", 0, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/levels/types/lt-1",
		strings.NewReader(`{"level_order":0}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body auth.LevelType
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.LevelOrder != 0 {
		t.Fatalf("expected level_order 0, got %d", body.LevelOrder)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
