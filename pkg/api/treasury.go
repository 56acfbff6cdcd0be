package api

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/treasury"
	"intranet-portal/pkg/treasury/xlsx"

	"github.com/shopspring/decimal"
)

var treasuryErrors = errorMapping{treasury.StatusCode, treasury.Message}

// statusResponse is the success body of the status endpoint. Amounts are
// JSON numbers with two decimals.
type statusResponse struct {
	OK      bool            `json:"ok"`
	ID      int64           `json:"id"`
	Status  treasury.Status `json:"status"`
	Balance json.Number     `json:"balance"`
	Pending json.Number     `json:"pending"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (s *Server) handleLedgerIndex(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.treasury.Index(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *Server) handleLedgerRefresh(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.treasury.Refresh(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *Server) handleTransactionNew(w http.ResponseWriter, r *http.Request) {
	form, err := s.treasury.New(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	actor := identity.FromContext(r.Context())
	if !actor.IsModerator() {
		s.fail(w, r, treasuryErrors, treasury.ErrForbidden)
		return
	}
	ledger, err := s.treasury.Index(r.Context(), actor)
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}

	var buf bytes.Buffer
	if err := xlsx.Export(&buf, ledger); err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "ledger.xlsx"}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleTransactionStore(w http.ResponseWriter, r *http.Request) {
	var in treasury.Input
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	tx, err := s.treasury.Store(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleTransactionEdit(w http.ResponseWriter, r *http.Request) {
	tx, err := s.treasury.Edit(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionUpdate(w http.ResponseWriter, r *http.Request) {
	var in treasury.Input
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	tx, err := s.treasury.Update(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), in)
	if err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.treasury.Delete(r.Context(), identity.FromContext(r.Context()), pathID(r, "id")); err != nil {
		s.fail(w, r, treasuryErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleTransactionStatus approves or rejects a pending transaction. The
// status comes from a JSON body or a form field.
func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decode(w, r, &body); err != nil {
			writeBadBody(w)
			return
		}
	} else {
		body.Status = r.FormValue("status")
	}

	change, err := s.treasury.SetStatus(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), body.Status)
	if err != nil {
		status := treasury.StatusCode(err)
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		s.failWithStatus(w, r, treasuryErrors, err, status)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OK:      true,
		ID:      change.ID,
		Status:  change.Status,
		Balance: money(change.Balance),
		Pending: money(change.Pending),
	})
}
