package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/manual"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func (f *fixture) createArticle(actor identity.Identity) manual.Article {
	f.t.Helper()
	w := f.doJSON(actor, http.MethodPost, "/manual", manual.Input{
		Title:      "Running the bar",
		Category:   "Events",
		Difficulty: "Easy",
		Content:    "# Checklist\n\n- count the **float**\n- [rota](/rota)",
	})
	if w.Code != http.StatusCreated {
		f.t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var a manual.Article
	decodeBody(f.t, w, &a)
	return a
}

func (f *fixture) upload(actor identity.Identity, articleID int64, field, fileName string, data []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		f.t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(data)
	mw.Close()
	return f.do(actor, http.MethodPost, "/manual/"+strconv.FormatInt(articleID, 10)+"/attachments", mw.FormDataContentType(), &buf)
}

func TestManual_CreateAndShow(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createArticle(member)

	if a.Difficulty != manual.DifficultyEasy || a.CreatedByUserID == nil || *a.CreatedByUserID != member.UserID {
		t.Errorf("Unexpected article: %+v", a)
	}

	w := f.do(member, http.MethodGet, "/manual/"+strconv.FormatInt(a.ID, 10), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var shown manual.Article
	decodeBody(t, w, &shown)
	want := "<h1>Checklist</h1><ul><li>count the <strong>float</strong></li><li><a href=\"/rota\">rota</a></li></ul>"
	if shown.ContentHTML != want {
		t.Errorf("Expected %q, got %q", want, shown.ContentHTML)
	}
}

func TestManual_ListAndCategories(t *testing.T) {
	f := newFixture(t, nil)
	f.createArticle(member)

	w := f.do(member, http.MethodGet, "/manual?q=FLOAT&difficulty=easy", "", nil)
	var found []manual.Article
	decodeBody(t, w, &found)
	if len(found) != 1 {
		t.Errorf("Expected one match, got %d", len(found))
	}

	w = f.do(member, http.MethodGet, "/manual?category=Finance", "", nil)
	decodeBody(t, w, &found)
	if len(found) != 0 {
		t.Errorf("Expected no match, got %d", len(found))
	}

	w = f.do(member, http.MethodGet, "/manual/categories", "", nil)
	var categories []string
	decodeBody(t, w, &categories)
	if len(categories) != 1 || categories[0] != "Events" {
		t.Errorf("Unexpected categories %v", categories)
	}
}

func TestManual_Preview(t *testing.T) {
	f := newFixture(t, nil)

	w := f.doJSON(member, http.MethodPost, "/manual/preview", map[string]string{
		"content": "[site](https://example.org) <script>alert(1)</script>",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if strings.Contains(body["html"], "<script") {
		t.Errorf("Expected script to be stripped, got %q", body["html"])
	}
	if !strings.Contains(body["html"], `rel="noopener noreferrer"`) {
		t.Errorf("Expected external link hardening, got %q", body["html"])
	}
}

func TestManual_UpdateForbiddenForOtherMember(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createArticle(treasurer)

	w := f.doJSON(member, http.MethodPut, "/manual/"+strconv.FormatInt(a.ID, 10), manual.Input{
		Title: "Hijacked", Content: "nothing to see here",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestManual_AttachmentRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createArticle(member)
	base := "/manual/" + strconv.FormatInt(a.ID, 10) + "/attachments"

	w := f.upload(member, a.ID, "file", "logo.png", pngBytes)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var att manual.Attachment
	decodeBody(t, w, &att)
	if att.MimeType != "image/png" || att.Size != int64(len(pngBytes)) {
		t.Errorf("Unexpected attachment %+v", att)
	}

	w = f.do(member, http.MethodGet, base+"/"+strconv.FormatInt(att.ID, 10), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), pngBytes) {
		t.Error("Downloaded body differs from upload")
	}
	if w.Header().Get("Content-Type") != "image/png" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("Unexpected headers %v", w.Header())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "logo.png") {
		t.Errorf("Expected file name in Content-Disposition, got %q", cd)
	}

	if w := f.upload(member, a.ID, "file", "logo.png", pngBytes); w.Code != http.StatusConflict {
		t.Errorf("Expected duplicate name to conflict, got %d", w.Code)
	}

	w = f.do(member, http.MethodDelete, base+"/"+strconv.FormatInt(att.ID, 10), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	w = f.do(member, http.MethodGet, base, "", nil)
	var list []manual.Attachment
	decodeBody(t, w, &list)
	if len(list) != 0 {
		t.Errorf("Expected no attachments left, got %d", len(list))
	}
}

func TestManual_UploadRejections(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		fileName  string
		data      []byte
		wantCode  int
		wantField string
	}{
		{name: "html", field: "file", fileName: "page.png", data: []byte("<html><body>hi</body></html>"), wantCode: http.StatusUnsupportedMediaType},
		{name: "too large", field: "file", fileName: "big.png", data: append(append([]byte{}, pngBytes...), make([]byte, 2048)...), wantCode: http.StatusRequestEntityTooLarge},
		{name: "wrong field", field: "upload", fileName: "logo.png", data: pngBytes, wantCode: http.StatusUnprocessableEntity, wantField: "file"},
		{name: "empty file", field: "file", fileName: "empty.png", data: nil, wantCode: http.StatusUnprocessableEntity, wantField: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			a := f.createArticle(member)

			w := f.upload(member, a.ID, tt.field, tt.fileName, tt.data)
			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantField != "" {
				var body failure
				decodeBody(t, w, &body)
				if !body.Errors.Has(tt.wantField) {
					t.Errorf("Expected a %s error, got %v", tt.wantField, body.Errors)
				}
			}
		})
	}
}
