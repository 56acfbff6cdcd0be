package api

import (
	"net/http"
	"strconv"
	"testing"

	"intranet-portal/pkg/poll"
)

func TestPolls_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)

	if w := f.doJSON(member, http.MethodPost, "/polls", poll.Input{Question: "Next trip?", Options: []string{"Porto", "Ghent"}}); w.Code != http.StatusForbidden {
		t.Errorf("Expected members to be refused poll creation, got %d", w.Code)
	}

	w := f.doJSON(admin, http.MethodPost, "/polls", poll.Input{Question: "Next trip?", Options: []string{"Porto", "Ghent", ""}})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created poll.Results
	decodeBody(t, w, &created)
	if len(created.Options) != 2 {
		t.Fatalf("Expected empty options to be dropped, got %+v", created.Options)
	}
	path := "/polls/" + strconv.FormatInt(created.ID, 10)

	w = f.doJSON(member, http.MethodPost, path+"/vote", map[string]int64{"option_id": created.Options[1].ID})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var voted poll.Results
	decodeBody(t, w, &voted)
	if voted.Total != 1 || voted.MyVote == nil || *voted.MyVote != created.Options[1].ID {
		t.Errorf("Unexpected results %+v", voted)
	}

	w = f.doJSON(member, http.MethodPost, path+"/vote", map[string]int64{"option_id": created.Options[0].ID})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected second vote to conflict, got %d", w.Code)
	}

	w = f.doJSON(treasurer, http.MethodPost, path+"/vote", map[string]int64{"option_id": 9999})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected foreign option to fail validation, got %d", w.Code)
	}

	if w := f.do(admin, http.MethodPost, path+"/close", "", nil); w.Code != http.StatusOK {
		t.Fatalf("Expected close to succeed, got %d", w.Code)
	}
	w = f.doJSON(treasurer, http.MethodPost, path+"/vote", map[string]int64{"option_id": created.Options[0].ID})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected vote on closed poll to conflict, got %d", w.Code)
	}

	w = f.do(treasurer, http.MethodGet, path, "", nil)
	var shown poll.Results
	decodeBody(t, w, &shown)
	if !shown.Closed || shown.Total != 1 || shown.MyVote != nil {
		t.Errorf("Unexpected poll state %+v", shown)
	}

	w = f.do(member, http.MethodGet, "/polls", "", nil)
	var list []poll.Poll
	decodeBody(t, w, &list)
	if len(list) != 1 {
		t.Errorf("Expected one poll, got %d", len(list))
	}
}
