package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/metrics"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/ratelimit"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
	"github.com/d1vanov/quentier-sub007/internal/sse"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

// testServer wraps the API server with the pieces tests poke at.
type testServer struct {
	*Server
	manager *localstorage.Manager
	stop    context.CancelFunc
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// setupTestServer wires in-memory storage, both models and the run loop.
func setupTestServer(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *testServer {
	t.Helper()

	log := logger.Discard()

	st, err := localstorage.OpenBadger("", true, log)
	require.NoError(t, err)

	mgr := localstorage.NewManager(st, log)
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	tagCache, err := entitycache.New[domain.Tag]("tag", 20, rec)
	require.NoError(t, err)
	notebookCache, err := entitycache.New[domain.Notebook]("notebook", 20, rec)
	require.NoError(t, err)

	events := sse.NewManager(log)
	account := domain.Account{Name: "Test", Type: domain.AccountEvernote}

	tags, err := tagmodel.New(tagmodel.Options{
		Backend:         mgr.Tags(),
		LinkedNotebooks: mgr.LinkedNotebooks(),
		Restrictions:    mgr.Restrictions(),
		Cache:           tagCache,
		Account:         account,
		Emitter:         events.ModelEmitter(),
		Metrics:         rec,
		Logger:          log,
	})
	require.NoError(t, err)

	notebooks, err := notebookmodel.New(notebookmodel.Options{
		Backend:         mgr.Notebooks(),
		LinkedNotebooks: mgr.LinkedNotebooks(),
		Restrictions:    mgr.Restrictions(),
		Cache:           notebookCache,
		Account:         account,
		Emitter:         events.ModelEmitter(),
		Metrics:         rec,
		Logger:          log,
	})
	require.NoError(t, err)

	loop := runloop.New(mgr, log, tags, notebooks)
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, func() {
			tags.Start()
			notebooks.Start()
		})
	}()

	srv := NewServer(Config{
		Loop:      loop,
		Tags:      tags,
		Notebooks: notebooks,
		Storage:   mgr,
		SSE:       events,
		Gatherer:  reg,
		Limiter:   limiter,
		Logger:    log,
	})

	ts := &testServer{Server: srv, manager: mgr, stop: cancel}
	t.Cleanup(func() {
		cancel()
		<-done
		mgr.Stop()
		assert.NoError(t, st.Close())
	})

	require.Eventually(t, func() bool {
		for _, kind := range []string{"tags", "notebooks"} {
			var status envelope[StatusResponse]
			ts.request(t, http.MethodGet, "/api/v1/"+kind+"/status", nil, &status)
			if !status.Data.AllItemsListed || !status.Data.LinkedNotebooksListed {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	return ts
}

// request performs a request and decodes the response into out when set.
func (ts *testServer) request(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		// Decode into a zeroed value so omitempty fields absent from this
		// response do not keep values from an earlier decode into out.
		v := reflect.ValueOf(out).Elem()
		v.Set(reflect.Zero(v.Type()))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (ts *testServer) create(t *testing.T, kind string, req CreateItemRequest) ItemResponse {
	t.Helper()

	var resp envelope[ItemResponse]
	rec := ts.request(t, http.MethodPost, "/api/v1/"+kind, req, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp.Data
}

func (ts *testServer) get(t *testing.T, kind, localID string) ItemResponse {
	t.Helper()

	var resp envelope[ItemResponse]
	rec := ts.request(t, http.MethodGet, "/api/v1/"+kind+"/"+localID, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return resp.Data
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, nil)

	var resp envelope[HealthResponse]
	rec := ts.request(t, http.MethodGet, "/health", nil, &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "healthy", resp.Data.Components["models"].Status)
}

func TestTags_CreateAndLookup(t *testing.T) {
	ts := setupTestServer(t, nil)

	work := ts.create(t, "tags", CreateItemRequest{Name: "Work"})
	assert.Equal(t, "Work", work.Item.Name)
	assert.True(t, work.Item.Synchronizable)
	assert.True(t, work.Item.Dirty)
	assert.True(t, work.Index.IsValid())

	child := ts.create(t, "tags", CreateItemRequest{Name: "Reports", ParentName: "work"})
	assert.Equal(t, work.Item.LocalID, child.Item.ParentLocalID)

	var found envelope[ItemResponse]
	rec := ts.request(t, http.MethodGet, "/api/v1/tags/lookup?name=REPORTS", nil, &found)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, child.Item.LocalID, found.Data.Item.LocalID)

	var names envelope[[]string]
	ts.request(t, http.MethodGet, "/api/v1/tags/names", nil, &names)
	assert.Equal(t, []string{"Reports", "Work"}, names.Data)

	var snapshot envelope[model.NodeView]
	ts.request(t, http.MethodGet, "/api/v1/tags", nil, &snapshot)
	assert.Equal(t, model.NodeTypeAllItems, snapshot.Data.Type)
	require.Len(t, snapshot.Data.Children, 1)
	assert.Equal(t, "Work", snapshot.Data.Children[0].Name)
	require.Len(t, snapshot.Data.Children[0].Children, 1)
	assert.Equal(t, "Reports", snapshot.Data.Children[0].Children[0].Name)
}

func TestTags_CreateRejected(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.create(t, "tags", CreateItemRequest{Name: "Work"})

	tests := []struct {
		name   string
		req    CreateItemRequest
		status int
		code   string
	}{
		{"duplicate", CreateItemRequest{Name: "work"}, http.StatusUnprocessableEntity, "VALIDATION"},
		{"empty", CreateItemRequest{Name: "   "}, http.StatusUnprocessableEntity, "VALIDATION"},
		{"comma", CreateItemRequest{Name: "a,b"}, http.StatusUnprocessableEntity, "VALIDATION"},
		{"unknown parent", CreateItemRequest{Name: "Child", ParentName: "Nope"}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp envelope[any]
			rec := ts.request(t, http.MethodPost, "/api/v1/tags", tt.req, &resp)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, resp.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestTags_BadBody(t *testing.T) {
	ts := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags", bytes.NewBufferString(`{"name":`))
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestTags_Update(t *testing.T) {
	ts := setupTestServer(t, nil)
	work := ts.create(t, "tags", CreateItemRequest{Name: "Work"})

	name := "Office"
	fav := true
	var resp envelope[ItemResponse]
	rec := ts.request(t, http.MethodPatch, "/api/v1/tags/"+work.Item.LocalID,
		UpdateItemRequest{Name: &name, Favorited: &fav}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Office", resp.Data.Item.Name)
	assert.True(t, resp.Data.Item.Favorited)

	isDefault := true
	rec = ts.request(t, http.MethodPatch, "/api/v1/tags/"+work.Item.LocalID,
		UpdateItemRequest{Default: &isDefault}, &resp)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "tags have no default column")

	// A rejected field rejects the whole request.
	home := "Home"
	unfav := false
	rec = ts.request(t, http.MethodPatch, "/api/v1/tags/"+work.Item.LocalID,
		UpdateItemRequest{Name: &home, Favorited: &unfav, Default: &isDefault}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var current envelope[ItemResponse]
	rec = ts.request(t, http.MethodGet, "/api/v1/tags/"+work.Item.LocalID, nil, &current)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Office", current.Data.Item.Name)
	assert.True(t, current.Data.Item.Favorited)

	rec = ts.request(t, http.MethodPatch, "/api/v1/tags/missing", UpdateItemRequest{Name: &name}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTags_PromoteDemoteMove(t *testing.T) {
	ts := setupTestServer(t, nil)
	a := ts.create(t, "tags", CreateItemRequest{Name: "A"})
	b := ts.create(t, "tags", CreateItemRequest{Name: "B"})
	child := ts.create(t, "tags", CreateItemRequest{Name: "C", ParentName: "A"})

	var resp envelope[ItemResponse]
	rec := ts.request(t, http.MethodPost, "/api/v1/tags/"+child.Item.LocalID+"/promote", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, resp.Data.Item.ParentLocalID)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/"+child.Item.LocalID+"/promote", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "already at the top level")

	// Sorted A, B, C: C goes under B.
	rec = ts.request(t, http.MethodPost, "/api/v1/tags/"+child.Item.LocalID+"/demote", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, b.Item.LocalID, resp.Data.Item.ParentLocalID)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/"+child.Item.LocalID+"/move", MoveRequest{ParentName: "a"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, a.Item.LocalID, resp.Data.Item.ParentLocalID)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/"+a.Item.LocalID+"/move", MoveRequest{ParentName: "C"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a tag cannot move under its own descendant")

	rec = ts.request(t, http.MethodDelete, "/api/v1/tags/"+child.Item.LocalID+"/parent", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, resp.Data.Item.ParentLocalID)
}

func TestTags_Remove(t *testing.T) {
	ts := setupTestServer(t, nil)
	parent := ts.create(t, "tags", CreateItemRequest{Name: "Parent"})
	child := ts.create(t, "tags", CreateItemRequest{Name: "Child", ParentName: "Parent"})

	rec := ts.request(t, http.MethodDelete, "/api/v1/tags/"+parent.Item.LocalID, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodGet, "/api/v1/tags/"+parent.Item.LocalID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The child moved up to the removed tag's parent.
	assert.Empty(t, ts.get(t, "tags", child.Item.LocalID).Item.ParentLocalID)
}

func TestTags_Sort(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.create(t, "tags", CreateItemRequest{Name: "alpha"})
	ts.create(t, "tags", CreateItemRequest{Name: "Beta"})

	rec := ts.request(t, http.MethodPost, "/api/v1/tags/sort", SortRequest{Column: "name", Order: "desc"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var snapshot envelope[model.NodeView]
	ts.request(t, http.MethodGet, "/api/v1/tags", nil, &snapshot)
	require.Len(t, snapshot.Data.Children, 2)
	assert.Equal(t, "Beta", snapshot.Data.Children[0].Name)

	var status envelope[StatusResponse]
	ts.request(t, http.MethodGet, "/api/v1/tags/status", nil, &status)
	assert.True(t, status.Data.Sorted)
	assert.Equal(t, "desc", status.Data.Order)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/sort", SortRequest{Column: "dirty"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/sort", SortRequest{Order: "sideways"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTags_DragAndDrop(t *testing.T) {
	ts := setupTestServer(t, nil)
	a := ts.create(t, "tags", CreateItemRequest{Name: "A"})
	b := ts.create(t, "tags", CreateItemRequest{Name: "B"})

	rec := ts.request(t, http.MethodGet, "/api/v1/tags/"+b.Item.LocalID+"/drag", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DragMIMEType, rec.Header().Get("Content-Type"))
	payload := json.RawMessage(rec.Body.Bytes())

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/drop", DropRequest{Data: payload, ParentID: a.Item.LocalID}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, a.Item.LocalID, ts.get(t, "tags", b.Item.LocalID).Item.ParentLocalID)

	// Dropping a tag on the notebook tree is rejected.
	rec = ts.request(t, http.MethodPost, "/api/v1/notebooks/drop", DropRequest{Data: payload}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/drop", DropRequest{Data: payload}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, ts.get(t, "tags", b.Item.LocalID).Item.ParentLocalID)
}

func TestNotebooks_Stacks(t *testing.T) {
	ts := setupTestServer(t, nil)
	nb := ts.create(t, "notebooks", CreateItemRequest{Name: "Projects", Stack: "Work"})
	assert.Equal(t, "Work", nb.Item.Stack)

	var stacks envelope[[]string]
	ts.request(t, http.MethodGet, "/api/v1/notebooks/stacks", nil, &stacks)
	assert.Equal(t, []string{"Work"}, stacks.Data)

	rec := ts.request(t, http.MethodPost, "/api/v1/notebooks/stacks/rename",
		map[string]string{"stack": "Work", "name": "Office"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "Office", ts.get(t, "notebooks", nb.Item.LocalID).Item.Stack)

	rec = ts.request(t, http.MethodPost, "/api/v1/notebooks/stacks/rename",
		map[string]string{"stack": "Nope", "name": "X"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp envelope[ItemResponse]
	rec = ts.request(t, http.MethodPost, "/api/v1/notebooks/"+nb.Item.LocalID+"/stack", map[string]string{"stack": "Home"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Home", resp.Data.Item.Stack)

	rec = ts.request(t, http.MethodDelete, "/api/v1/notebooks/"+nb.Item.LocalID+"/stack", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, resp.Data.Item.Stack)

	ts.request(t, http.MethodGet, "/api/v1/notebooks/stacks", nil, &stacks)
	assert.Empty(t, stacks.Data)

	rec = ts.request(t, http.MethodPost, "/api/v1/tags/"+nb.Item.LocalID+"/promote", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "notebooks are not in the tag tree")
}

func TestNotebooks_DefaultIsExclusive(t *testing.T) {
	ts := setupTestServer(t, nil)
	first := ts.create(t, "notebooks", CreateItemRequest{Name: "First"})
	second := ts.create(t, "notebooks", CreateItemRequest{Name: "Second"})

	yes := true
	rec := ts.request(t, http.MethodPatch, "/api/v1/notebooks/"+first.Item.LocalID, UpdateItemRequest{Default: &yes}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.request(t, http.MethodPatch, "/api/v1/notebooks/"+second.Item.LocalID, UpdateItemRequest{Default: &yes}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.False(t, ts.get(t, "notebooks", first.Item.LocalID).Item.Default)
	assert.True(t, ts.get(t, "notebooks", second.Item.LocalID).Item.Default)

	no := false
	rec = ts.request(t, http.MethodPatch, "/api/v1/notebooks/"+second.Item.LocalID, UpdateItemRequest{Default: &no}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStorage_NoteCounts(t *testing.T) {
	ts := setupTestServer(t, nil)
	nb := ts.create(t, "notebooks", CreateItemRequest{Name: "Inbox"})
	tag := ts.create(t, "tags", CreateItemRequest{Name: "Todo"})

	// The notebook must reach storage before notes can be counted against it.
	require.Eventually(t, func() bool {
		var status envelope[StatusResponse]
		ts.request(t, http.MethodGet, "/api/v1/notebooks/status", nil, &status)
		return status.Data.Pending["add"] == 0
	}, 5*time.Second, 10*time.Millisecond)

	rec := ts.request(t, http.MethodPut, "/api/v1/storage/notes/n1", domain.Note{
		Title:           "Groceries",
		NotebookLocalID: nb.Item.LocalID,
		TagLocalIDs:     []string{tag.Item.LocalID},
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return ts.get(t, "notebooks", nb.Item.LocalID).Item.NoteCount == 1 &&
			ts.get(t, "tags", tag.Item.LocalID).Item.NoteCount == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.request(t, http.MethodDelete, "/api/v1/storage/notes/n1", nil, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return ts.get(t, "notebooks", nb.Item.LocalID).Item.NoteCount == 0
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.request(t, http.MethodPut, "/api/v1/storage/notes/n2", domain.Note{LocalID: "other"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorage_ExternalChanges(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.request(t, http.MethodPut, "/api/v1/storage/linked-notebooks/ln-1",
		domain.LinkedNotebook{Username: "alice"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	shared := domain.Tag{Name: "Shared"}
	shared.GUID = "guid-1"
	shared.LinkedNotebookGUID = "ln-1"
	rec = ts.request(t, http.MethodPut, "/api/v1/storage/tags/t-ext", shared, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := ts.request(t, http.MethodGet, "/api/v1/tags/t-ext", nil, nil)
		return rec.Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	var status envelope[StatusResponse]
	ts.request(t, http.MethodGet, "/api/v1/tags/status", nil, &status)
	assert.Equal(t, "alice", status.Data.LinkedNotebookOwners["ln-1"])

	rec = ts.request(t, http.MethodDelete, "/api/v1/storage/tags/t-ext", nil, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := ts.request(t, http.MethodGet, "/api/v1/tags/t-ext", nil, nil)
		return rec.Code == http.StatusNotFound
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.request(t, http.MethodPut, "/api/v1/storage/linked-notebooks/ln-2", domain.LinkedNotebook{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "username is required")
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	limiter := ratelimit.New(0.01, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, limiter)

	ts.create(t, "tags", CreateItemRequest{Name: "First"})

	var resp envelope[any]
	rec := ts.request(t, http.MethodPost, "/api/v1/tags", CreateItemRequest{Name: "Second"}, &resp)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/v1/tags", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.create(t, "tags", CreateItemRequest{Name: "Work"})

	rec := ts.request(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "treeview_backend_requests_total")
}

func TestStoppedLoop(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.stop()

	require.Eventually(t, func() bool {
		rec := ts.request(t, http.MethodGet, "/api/v1/tags", nil, nil)
		return rec.Code == http.StatusServiceUnavailable
	}, 5*time.Second, 10*time.Millisecond)
}
