package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/models"
)

func TestClientRoundTrip(t *testing.T) {
	var saved []models.TurnInput
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reply := "Hello!"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/chat/history":
			_ = json.NewEncoder(w).Encode([]models.TurnSession{{
				SessionKey: "s1",
				Messages: []models.Turn{
					{UserText: "hi", AssistantText: &reply, Timestamp: base},
					{UserText: "thanks", Timestamp: base.Add(time.Minute)},
				},
			}})
		case "/api/chat/save-message":
			var in models.TurnInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			saved = append(saved, in)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(apiclient.New(srv.URL, nil).WithToken("tok"))
	turns, err := c.ListTurns(context.Background(), bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(turns) != 2 || turns[0].SessionKey != "s1" || !turns[0].HasReply() || turns[1].HasReply() {
		t.Fatalf("unexpected turns: %+v", turns)
	}

	in := models.TurnInput{Text: "oats?", Response: "Error: boom", SessionKey: "s1"}
	if err := c.SaveTurn(context.Background(), bob, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 1 || saved[0] != in {
		t.Fatalf("unexpected saved turns: %+v", saved)
	}
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(apiclient.New(srv.URL, nil)).ListTurns(context.Background(), bob)
	if !apiclient.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}
}
