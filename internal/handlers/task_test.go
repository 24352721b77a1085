package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Torqued-codes/App/internal/config"
	dom "github.com/Torqued-codes/App/internal/domain"
	"github.com/Torqued-codes/App/internal/dto"
	"github.com/Torqued-codes/App/internal/repo"
	"github.com/Torqued-codes/App/internal/service"
	"github.com/Torqued-codes/App/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(r repo.TaskRepo) *gin.Engine {
	h := NewTaskHandler(service.NewTaskService(r, nil))
	e := gin.New()
	e.GET("/tasks", h.List)
	e.POST("/tasks", h.Create)
	e.GET("/tasks/:id", h.GetByID)
	e.PUT("/tasks/:id", h.Update)
	e.DELETE("/tasks/:id", h.Delete)
	return e
}

func newSQLiteRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := storage.Open(context.Background(), config.DBConfig{
		Path:     filepath.Join(t.TempDir(), "tasks.db"),
		MaxConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newRouter(repo.NewSQLiteTaskRepo(db))
}

func do(t *testing.T, e http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decodeTasks(t *testing.T, w *httptest.ResponseRecorder) []dto.TaskResponse {
	t.Helper()
	var list []dto.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	return list
}

func TestLifecycleScenario(t *testing.T) {
	e := newSQLiteRouter(t)

	w := do(t, e, http.MethodPost, "/tasks", `{"title":"buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"buy milk","completed":false}`, w.Body.String())

	w = do(t, e, http.MethodPut, "/tasks/1", `{"completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"buy milk","completed":true}`, w.Body.String())

	w = do(t, e, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"title":"buy milk","completed":true}]`, w.Body.String())

	w = do(t, e, http.MethodDelete, "/tasks/1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(t, e, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestListEmptyDatabase(t *testing.T) {
	w := do(t, newSQLiteRouter(t), http.MethodGet, "/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCreateForcesCompletedFalse(t *testing.T) {
	e := newSQLiteRouter(t)

	w := do(t, e, http.MethodPost, "/tasks", `{"title":"a","completed":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"a","completed":false}`, w.Body.String())
}

func TestCreateThenListHasExactlyOneNewEntry(t *testing.T) {
	e := newSQLiteRouter(t)
	titles := []string{"one", "two", "", "ünïcödé ✓"}

	seen := map[int64]bool{}
	for i, title := range titles {
		body, err := json.Marshal(map[string]string{"title": title})
		require.NoError(t, err)
		w := do(t, e, http.MethodPost, "/tasks", string(body))
		require.Equal(t, http.StatusCreated, w.Code)

		var created dto.TaskResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.False(t, seen[created.ID], "id %d reused", created.ID)
		seen[created.ID] = true

		list := decodeTasks(t, do(t, e, http.MethodGet, "/tasks", ""))
		require.Len(t, list, i+1)
		assert.Contains(t, list, dto.TaskResponse{ID: created.ID, Title: title, Completed: false})
	}
}

func TestCreateRejectsBadBodies(t *testing.T) {
	e := newSQLiteRouter(t)
	bodies := map[string]string{
		"missing title": `{}`,
		"null title":    `{"title":null}`,
		"wrong type":    `{"title":42}`,
		"malformed":     `{"title":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := do(t, e, http.MethodPost, "/tasks", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
	assert.Equal(t, "[]", do(t, e, http.MethodGet, "/tasks", "").Body.String())
}

func TestUpdateKeepsUnspecifiedFields(t *testing.T) {
	e := newSQLiteRouter(t)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"walk dog"}`).Code)

	w := do(t, e, http.MethodPut, "/tasks/1", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"walk dog","completed":false}`, w.Body.String())

	w = do(t, e, http.MethodPut, "/tasks/1", `{"title":"walk cat"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"walk cat","completed":false}`, w.Body.String())

	w = do(t, e, http.MethodPut, "/tasks/1", `{"title":"x","completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"title":"x","completed":true}`, w.Body.String())

	list := decodeTasks(t, do(t, e, http.MethodGet, "/tasks", ""))
	assert.Equal(t, []dto.TaskResponse{{ID: 1, Title: "x", Completed: true}}, list)
}

func TestGetByID(t *testing.T) {
	e := newSQLiteRouter(t)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"a"}`).Code)

	w := do(t, e, http.MethodPut, "/tasks/1", `{"completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	got := do(t, e, http.MethodGet, "/tasks/1", "")
	assert.Equal(t, http.StatusOK, got.Code)
	assert.JSONEq(t, w.Body.String(), got.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/tasks/2", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodGet, "/tasks/x", "").Code)
}

func TestUpdateIsIdempotent(t *testing.T) {
	e := newSQLiteRouter(t)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"a"}`).Code)

	first := do(t, e, http.MethodPut, "/tasks/1", `{"title":"x"}`)
	afterFirst := do(t, e, http.MethodGet, "/tasks", "").Body.String()
	second := do(t, e, http.MethodPut, "/tasks/1", `{"title":"x"}`)
	afterSecond := do(t, e, http.MethodGet, "/tasks", "").Body.String()

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, afterFirst, afterSecond)
}

func TestUpdateMissingTask(t *testing.T) {
	w := do(t, newSQLiteRouter(t), http.MethodPut, "/tasks/9", `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestUpdateRejectsBadInput(t *testing.T) {
	e := newSQLiteRouter(t)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"a"}`).Code)

	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodPut, "/tasks/abc", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodPut, "/tasks/0", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodPut, "/tasks/1", `{"completed":"yes"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodPut, "/tasks/1", `not json`).Code)
}

func TestDeleteIsRepeatable(t *testing.T) {
	e := newSQLiteRouter(t)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"a"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/tasks", `{"title":"b"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, e, http.MethodDelete, "/tasks/1", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, e, http.MethodDelete, "/tasks/1", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, e, http.MethodDelete, "/tasks/404", "").Code)

	list := decodeTasks(t, do(t, e, http.MethodGet, "/tasks", ""))
	assert.Equal(t, []dto.TaskResponse{{ID: 2, Title: "b"}}, list)
}

func TestDeleteRejectsBadID(t *testing.T) {
	w := do(t, newSQLiteRouter(t), http.MethodDelete, "/tasks/-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid id"}`, w.Body.String())
}

// failingRepo returns err from every method.
type failingRepo struct{ err error }

func (f failingRepo) List(context.Context) ([]dom.Task, error) { return nil, f.err }
func (f failingRepo) Create(context.Context, string) (dom.Task, error) {
	return dom.Task{}, f.err
}
func (f failingRepo) GetByID(context.Context, int64) (dom.Task, error) {
	return dom.Task{}, f.err
}
func (f failingRepo) Patch(context.Context, int64, dom.TaskPatch) (dom.Task, error) {
	return dom.Task{}, f.err
}
func (f failingRepo) Delete(context.Context, int64) error { return f.err }

func TestStorageFailures(t *testing.T) {
	e := newRouter(failingRepo{err: errors.New("disk I/O error")})

	w := do(t, e, http.MethodGet, "/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = do(t, e, http.MethodPost, "/tasks", `{"title":"a"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"disk I/O error"}`, w.Body.String())

	w = do(t, e, http.MethodPut, "/tasks/1", `{"title":"a"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(t, e, http.MethodDelete, "/tasks/1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStorageBusy(t *testing.T) {
	e := newRouter(failingRepo{err: sqlite3.Error{Code: sqlite3.ErrBusy}})

	w := do(t, e, http.MethodPut, "/tasks/1", `{"completed":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"storage busy"}`, w.Body.String())
}
