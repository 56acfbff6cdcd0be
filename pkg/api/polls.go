package api

import (
	"net/http"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/poll"
)

var pollErrors = errorMapping{poll.StatusCode, poll.Message}

func (s *Server) handlePollList(w http.ResponseWriter, r *http.Request) {
	polls, err := s.polls.List(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, pollErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (s *Server) handlePollCreate(w http.ResponseWriter, r *http.Request) {
	var in poll.Input
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	results, err := s.polls.Create(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		s.fail(w, r, pollErrors, err)
		return
	}
	writeJSON(w, http.StatusCreated, results)
}

func (s *Server) handlePollShow(w http.ResponseWriter, r *http.Request) {
	results, err := s.polls.Get(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, pollErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePollVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OptionID int64 `json:"option_id"`
	}
	if err := decode(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}
	results, err := s.polls.Vote(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), body.OptionID)
	if err != nil {
		s.fail(w, r, pollErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePollClose(w http.ResponseWriter, r *http.Request) {
	results, err := s.polls.Close(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, pollErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
