package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/http/response"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
)

// ItemResponse describes one item row.
type ItemResponse struct {
	Index model.Index    `json:"index"`
	Flags model.Flag     `json:"flags"`
	Item  itemstore.Item `json:"item"`
}

// StatusResponse describes the state of one model.
type StatusResponse struct {
	Kind                  string            `json:"kind"`
	Items                 int               `json:"items"`
	Columns               []string          `json:"columns"`
	AllItemsListed        bool              `json:"all_items_listed"`
	LinkedNotebooksListed bool              `json:"linked_notebooks_listed"`
	Sorted                bool              `json:"sorted"`
	Order                 string            `json:"order,omitempty"`
	Pending               map[string]int    `json:"pending"`
	LinkedNotebookOwners  map[string]string `json:"linked_notebook_owners,omitempty"`
}

// CreateItemRequest is the body of a create request.
type CreateItemRequest struct {
	Name               string `json:"name"`
	ParentName         string `json:"parent_name,omitempty"`
	Stack              string `json:"stack,omitempty"`
	LinkedNotebookGUID string `json:"linked_notebook_guid,omitempty"`
}

// UpdateItemRequest is the body of a PATCH request. Only the fields present
// are changed, in the order they are declared.
type UpdateItemRequest struct {
	Name           *string `json:"name,omitempty"`
	Synchronizable *bool   `json:"synchronizable,omitempty"`
	Default        *bool   `json:"default,omitempty"`
	LastUsed       *bool   `json:"last_used,omitempty"`
	Favorited      *bool   `json:"favorited,omitempty"`
}

// SortRequest is the body of a sort request. Column "none" turns sorting off.
type SortRequest struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

// MoveRequest is the body of a move under another tag.
type MoveRequest struct {
	ParentName string `json:"parent_name"`
}

// DropRequest moves a dragged item. The target is the item ParentID, else the
// stack Stack, else the linked notebook group, else the all items root.
type DropRequest struct {
	Data               json.RawMessage `json:"data"`
	ParentID           string          `json:"parent_id,omitempty"`
	Stack              string          `json:"stack,omitempty"`
	LinkedNotebookGUID string          `json:"linked_notebook_guid,omitempty"`
}

// treeRoutes serves the routes every model supports.
type treeRoutes[E any] struct {
	s *Server
	m *model.Model[E]
}

func newTreeRoutes[E any](s *Server, m *model.Model[E]) *treeRoutes[E] {
	return &treeRoutes[E]{s: s, m: m}
}

func (t *treeRoutes[E]) mount(r chi.Router) {
	r.Get("/", t.handleSnapshot)
	r.Post("/", t.handleCreate)
	r.Get("/status", t.handleStatus)
	r.Get("/names", t.handleNames)
	r.Get("/lookup", t.handleLookup)
	r.Post("/sort", t.handleSort)
	r.Post("/drop", t.handleDrop)
	r.Get("/{id}", t.handleGet)
	r.Patch("/{id}", t.handleUpdate)
	r.Delete("/{id}", t.handleRemove)
	r.Get("/{id}/drag", t.handleDrag)
}

// do runs fn on the run loop and writes its error, if any. It reports
// whether fn succeeded.
func (t *treeRoutes[E]) do(w http.ResponseWriter, r *http.Request, fn func() error) bool {
	if err := t.s.loop.Do(r.Context(), fn); err != nil {
		t.s.handleError(w, err)
		return false
	}
	return true
}

// index resolves the local id in the URL. Must run on the loop.
func (t *treeRoutes[E]) index(r *http.Request) (model.Index, error) {
	localID := chi.URLParam(r, "id")
	idx, ok := t.m.IndexForLocalID(localID)
	if !ok {
		return model.Index{}, domainerrors.NotFoundf("%s %q not found", t.m.EntityKind(), localID)
	}
	return idx, nil
}

// itemResponse builds the response for idx. Must run on the loop.
func (t *treeRoutes[E]) itemResponse(idx model.Index) (ItemResponse, error) {
	it, ok := t.m.Item(idx)
	if !ok {
		return ItemResponse{}, domainerrors.InternalConsistency("index does not refer to an item")
	}
	return ItemResponse{Index: idx, Flags: t.m.Flags(idx), Item: it}, nil
}

func (t *treeRoutes[E]) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	view, err := runloop.Query(r.Context(), t.s.loop, func() (*model.NodeView, error) {
		return t.m.Snapshot(), nil
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, view, t.s.logger)
}

func (t *treeRoutes[E]) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := runloop.Query(r.Context(), t.s.loop, func() (StatusResponse, error) {
		st := StatusResponse{
			Kind:                  string(t.m.EntityKind()),
			Items:                 t.m.Len(),
			AllItemsListed:        t.m.AllItemsListed(),
			LinkedNotebooksListed: t.m.LinkedNotebooksListed(),
			Pending:               t.m.PendingRequests(),
			LinkedNotebookOwners:  t.m.LinkedNotebookOwners(),
		}
		for _, c := range t.m.Columns() {
			st.Columns = append(st.Columns, c.String())
		}
		active, order := t.m.SortState()
		if active {
			st.Sorted = true
			st.Order = "asc"
			if order == model.Descending {
				st.Order = "desc"
			}
		}
		return st, nil
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, status, t.s.logger)
}

func (t *treeRoutes[E]) handleNames(w http.ResponseWriter, r *http.Request) {
	ln := r.URL.Query().Get("linked_notebook_guid")
	names, err := runloop.Query(r.Context(), t.s.loop, func() ([]string, error) {
		return t.m.ItemNames(ln), nil
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.Success(w, names, t.s.logger)
}

func (t *treeRoutes[E]) handleLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		response.BadRequest(w, "name is required", t.s.logger)
		return
	}
	ln := r.URL.Query().Get("linked_notebook_guid")

	item, err := runloop.Query(r.Context(), t.s.loop, func() (ItemResponse, error) {
		idx, ok := t.m.IndexForName(name, ln)
		if !ok {
			return ItemResponse{}, domainerrors.NotFoundf("%s %q not found", t.m.EntityKind(), name)
		}
		return t.itemResponse(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, item, t.s.logger)
}

func (t *treeRoutes[E]) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := runloop.Query(r.Context(), t.s.loop, func() (ItemResponse, error) {
		idx, err := t.index(r)
		if err != nil {
			return ItemResponse{}, err
		}
		return t.itemResponse(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, item, t.s.logger)
}

func (t *treeRoutes[E]) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeJSON(w, r, &req, t.s) {
		return
	}

	item, err := runloop.Query(r.Context(), t.s.loop, func() (ItemResponse, error) {
		idx, err := t.m.Create(model.CreateRequest{
			Name:               req.Name,
			ParentName:         req.ParentName,
			Stack:              req.Stack,
			LinkedNotebookGUID: req.LinkedNotebookGUID,
		})
		if err != nil {
			return ItemResponse{}, err
		}
		return t.itemResponse(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Created(w, item, t.s.logger)
}

func (t *treeRoutes[E]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeJSON(w, r, &req, t.s) {
		return
	}

	item, err := runloop.Query(r.Context(), t.s.loop, func() (ItemResponse, error) {
		idx, err := t.index(r)
		if err != nil {
			return ItemResponse{}, err
		}
		err = t.m.Edit(idx, model.ItemEdit{
			Name:           req.Name,
			Synchronizable: req.Synchronizable,
			Default:        req.Default,
			LastUsed:       req.LastUsed,
			Favorited:      req.Favorited,
		})
		if err != nil {
			return ItemResponse{}, err
		}

		// Renames and sorting move rows, so resolve again.
		if idx, err = t.index(r); err != nil {
			return ItemResponse{}, err
		}
		return t.itemResponse(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, item, t.s.logger)
}

func (t *treeRoutes[E]) handleRemove(w http.ResponseWriter, r *http.Request) {
	if t.do(w, r, func() error {
		idx, err := t.index(r)
		if err != nil {
			return err
		}
		return t.m.Remove(idx)
	}) {
		response.NoContent(w)
	}
}

func (t *treeRoutes[E]) handleSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !decodeJSON(w, r, &req, t.s) {
		return
	}
	order, ok := sortOrders[req.Order]
	if !ok {
		response.BadRequest(w, "order must be asc or desc", t.s.logger)
		return
	}

	if t.do(w, r, func() error {
		if req.Column == "none" {
			t.m.Sort(model.Unsorted, order)
			return nil
		}
		column := model.ColumnName
		if req.Column != "" && req.Column != column.String() {
			return domainerrors.Validationf("cannot sort by %q, only by name", req.Column)
		}
		t.m.Sort(t.m.ColumnIndex(column), order)
		return nil
	}) {
		response.NoContent(w)
	}
}

func (t *treeRoutes[E]) handleDrag(w http.ResponseWriter, r *http.Request) {
	data, err := runloop.Query(r.Context(), t.s.loop, func() ([]byte, error) {
		idx, err := t.index(r)
		if err != nil {
			return nil, err
		}
		return t.m.Encode(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", model.DragMIMEType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		t.s.logger.Debug("Failed to write drag payload", "error", err)
	}
}

func (t *treeRoutes[E]) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decodeJSON(w, r, &req, t.s) {
		return
	}
	if len(req.Data) == 0 {
		response.BadRequest(w, "data is required", t.s.logger)
		return
	}

	if t.do(w, r, func() error {
		target, err := t.dropTarget(req)
		if err != nil {
			return err
		}
		return t.m.Drop(req.Data, target)
	}) {
		response.NoContent(w)
	}
}

// dropTarget resolves the target of a drop. Must run on the loop.
func (t *treeRoutes[E]) dropTarget(req DropRequest) (model.Index, error) {
	var (
		idx model.Index
		ok  bool
	)
	switch {
	case req.ParentID != "":
		idx, ok = t.m.IndexForLocalID(req.ParentID)
	case req.Stack != "":
		idx, ok = t.m.IndexForStack(req.Stack, req.LinkedNotebookGUID)
	case req.LinkedNotebookGUID != "":
		idx, ok = t.m.IndexForLinkedNotebookGUID(req.LinkedNotebookGUID)
	default:
		return t.m.AllItemsIndex(), nil
	}
	if !ok {
		return model.Index{}, domainerrors.NotFound("drop target not found")
	}
	return idx, nil
}

// Tag routes.

func (t *treeRoutes[E]) handlePromote(w http.ResponseWriter, r *http.Request) {
	t.moveItem(w, r, t.m.Promote)
}

func (t *treeRoutes[E]) handleDemote(w http.ResponseWriter, r *http.Request) {
	t.moveItem(w, r, t.m.Demote)
}

func (t *treeRoutes[E]) handleRemoveFromParent(w http.ResponseWriter, r *http.Request) {
	t.moveItem(w, r, t.m.RemoveFromParent)
}

func (t *treeRoutes[E]) handleMoveToParent(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req, t.s) {
		return
	}
	t.moveItem(w, r, func(idx model.Index) error {
		return t.m.MoveToParent(idx, req.ParentName)
	})
}

// Notebook routes.

func (t *treeRoutes[E]) handleMoveToStack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stack string `json:"stack"`
	}
	if !decodeJSON(w, r, &req, t.s) {
		return
	}
	t.moveItem(w, r, func(idx model.Index) error {
		return t.m.MoveToStack(idx, req.Stack)
	})
}

func (t *treeRoutes[E]) handleRemoveFromStack(w http.ResponseWriter, r *http.Request) {
	t.moveItem(w, r, t.m.RemoveFromStack)
}

func (t *treeRoutes[E]) handleListStacks(w http.ResponseWriter, r *http.Request) {
	ln := r.URL.Query().Get("linked_notebook_guid")
	stacks, err := runloop.Query(r.Context(), t.s.loop, func() ([]string, error) {
		return t.m.Stacks(ln), nil
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	if stacks == nil {
		stacks = []string{}
	}
	response.Success(w, stacks, t.s.logger)
}

func (t *treeRoutes[E]) handleRenameStack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stack              string `json:"stack"`
		Name               string `json:"name"`
		LinkedNotebookGUID string `json:"linked_notebook_guid,omitempty"`
	}
	if !decodeJSON(w, r, &req, t.s) {
		return
	}

	if t.do(w, r, func() error {
		idx, ok := t.m.IndexForStack(req.Stack, req.LinkedNotebookGUID)
		if !ok {
			return domainerrors.NotFoundf("stack %q not found", req.Stack)
		}
		return t.m.RenameStack(idx, req.Name)
	}) {
		response.NoContent(w)
	}
}

// moveItem applies fn to the item in the URL and responds with its new row.
func (t *treeRoutes[E]) moveItem(w http.ResponseWriter, r *http.Request, fn func(model.Index) error) {
	item, err := runloop.Query(r.Context(), t.s.loop, func() (ItemResponse, error) {
		idx, err := t.index(r)
		if err != nil {
			return ItemResponse{}, err
		}
		if err := fn(idx); err != nil {
			return ItemResponse{}, err
		}
		if idx, err = t.index(r); err != nil {
			return ItemResponse{}, err
		}
		return t.itemResponse(idx)
	})
	if err != nil {
		t.s.handleError(w, err)
		return
	}
	response.Success(w, item, t.s.logger)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, s *Server) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		response.BadRequest(w, "invalid request body: "+err.Error(), s.logger)
		return false
	}
	return true
}
