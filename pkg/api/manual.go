package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/manual"
	"intranet-portal/pkg/validation"

	"go.uber.org/zap"
)

var manualErrors = errorMapping{manual.StatusCode, manual.Message}

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 1 << 20

func (s *Server) handleArticleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	articles, err := s.manual.List(r.Context(), identity.FromContext(r.Context()), manual.Filter{
		Query:      q.Get("q"),
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	})
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleArticleCreate(w http.ResponseWriter, r *http.Request) {
	var in manual.Input
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	article, err := s.manual.Create(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (s *Server) handleArticlePreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decode(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}
	html, err := s.manual.Preview(r.Context(), identity.FromContext(r.Context()), body.Content)
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.manual.Categories(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleArticleShow(w http.ResponseWriter, r *http.Request) {
	article, err := s.manual.Get(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleArticleUpdate(w http.ResponseWriter, r *http.Request) {
	var in manual.Input
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	article, err := s.manual.Update(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), in)
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleArticleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manual.Delete(r.Context(), identity.FromContext(r.Context()), pathID(r, "id")); err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAttachmentList(w http.ResponseWriter, r *http.Request) {
	attachments, err := s.manual.Attachments(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, attachments)
}

// handleAttachmentUpload accepts a multipart form with the file in "file".
func (s *Server) handleAttachmentUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.fail(w, r, manualErrors, manual.ErrFileTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			errs := validation.FieldErrors{}
			errs.Add("file", manual.MsgFileRequired)
			s.fail(w, r, manualErrors, errs.Err())
		default:
			writeBadBody(w)
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	att, err := s.manual.AddAttachment(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), header.Filename, file)
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// handleAttachmentDownload streams the stored file. The detected type is
// sent with nosniff so browsers do not reinterpret it.
func (s *Server) handleAttachmentDownload(w http.ResponseWriter, r *http.Request) {
	att, body, err := s.manual.OpenAttachment(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), pathID(r, "aid"))
	if err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", att.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("attachment download interrupted",
			zap.Int64("attachment_id", att.ID), zap.Error(err))
	}
}

func (s *Server) handleAttachmentDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manual.DeleteAttachment(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), pathID(r, "aid")); err != nil {
		s.fail(w, r, manualErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
