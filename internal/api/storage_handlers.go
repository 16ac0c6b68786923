package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/http/response"
)

// mountStorage registers the routes writing to storage behind the models'
// back. Every write completes asynchronously, so they answer 202.
func (s *Server) mountStorage(r chi.Router) {
	r.Put("/linked-notebooks/{guid}", s.handlePutLinkedNotebook)
	r.Delete("/linked-notebooks/{guid}", s.handleExpungeLinkedNotebook)
	r.Put("/notes/{id}", s.handlePutNote)
	r.Delete("/notes/{id}", s.handleExpungeNote)
	r.Put("/tags/{id}", s.handlePutTag)
	r.Delete("/tags/{id}", s.handleExpungeTag)
	r.Put("/notebooks/{id}", s.handlePutNotebook)
	r.Delete("/notebooks/{id}", s.handleExpungeNotebook)
}

func (s *Server) handlePutLinkedNotebook(w http.ResponseWriter, r *http.Request) {
	var ln domain.LinkedNotebook
	if !decodeJSON(w, r, &ln, s) {
		return
	}
	guid := chi.URLParam(r, "guid")
	if ln.GUID != "" && ln.GUID != guid {
		response.BadRequest(w, "guid does not match the URL", s.logger)
		return
	}
	ln.GUID = guid
	if ln.Username == "" {
		response.BadRequest(w, "username is required", s.logger)
		return
	}

	s.storage.PutLinkedNotebook(ln)
	response.Accepted(w, ln, s.logger)
}

func (s *Server) handleExpungeLinkedNotebook(w http.ResponseWriter, r *http.Request) {
	s.storage.ExpungeLinkedNotebook(chi.URLParam(r, "guid"))
	response.Accepted(w, nil, s.logger)
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	var note domain.Note
	if !decodeJSON(w, r, &note, s) {
		return
	}
	if !matchLocalID(w, r, &note.LocalID, s) {
		return
	}
	if note.NotebookLocalID == "" {
		response.BadRequest(w, "notebook_local_id is required", s.logger)
		return
	}

	s.storage.PutNote(note)
	response.Accepted(w, note, s.logger)
}

func (s *Server) handleExpungeNote(w http.ResponseWriter, r *http.Request) {
	s.storage.ExpungeNote(chi.URLParam(r, "id"))
	response.Accepted(w, nil, s.logger)
}

func (s *Server) handlePutTag(w http.ResponseWriter, r *http.Request) {
	var tag domain.Tag
	if !decodeJSON(w, r, &tag, s) {
		return
	}
	if !matchLocalID(w, r, &tag.LocalID, s) {
		return
	}

	s.storage.ExternalUpdateTag(tag)
	response.Accepted(w, tag, s.logger)
}

func (s *Server) handleExpungeTag(w http.ResponseWriter, r *http.Request) {
	s.storage.ExternalExpungeTag(chi.URLParam(r, "id"))
	response.Accepted(w, nil, s.logger)
}

func (s *Server) handlePutNotebook(w http.ResponseWriter, r *http.Request) {
	var nb domain.Notebook
	if !decodeJSON(w, r, &nb, s) {
		return
	}
	if !matchLocalID(w, r, &nb.LocalID, s) {
		return
	}

	s.storage.ExternalUpdateNotebook(nb)
	response.Accepted(w, nb, s.logger)
}

func (s *Server) handleExpungeNotebook(w http.ResponseWriter, r *http.Request) {
	s.storage.ExternalExpungeNotebook(chi.URLParam(r, "id"))
	response.Accepted(w, nil, s.logger)
}

// matchLocalID fills in the local id from the URL, rejecting a body naming
// another one.
func matchLocalID(w http.ResponseWriter, r *http.Request, localID *string, s *Server) bool {
	id := chi.URLParam(r, "id")
	if *localID != "" && *localID != id {
		response.BadRequest(w, "local_id does not match the URL", s.logger)
		return false
	}
	*localID = id
	return true
}
