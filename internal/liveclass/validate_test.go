package liveclass

import (
	"errors"
	"strings"
	"testing"
)

func TestCheck_CreateSessionRequest(t *testing.T) {
	cases := []struct {
		name   string
		req    CreateSessionRequest
		fields []string
	}{
		{"valid", CreateSessionRequest{Title: "Algebra Basics", Topic: "Quadratics"}, nil},
		{"valid without topic", CreateSessionRequest{Title: "Algebra"}, nil},
		{"valid with link", CreateSessionRequest{Title: "A", JitsiLink: "https://meet.jit.si/room"}, nil},
		{"missing title", CreateSessionRequest{Topic: "x"}, []string{"title"}},
		{"blank title", CreateSessionRequest{Title: "   "}, []string{"title"}},
		{"long title", CreateSessionRequest{Title: strings.Repeat("a", 201)}, []string{"title"}},
		{"bad link", CreateSessionRequest{Title: "A", JitsiLink: "not a url"}, []string{"jitsi_link"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.req)
			if tc.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tc.fields) {
				t.Errorf("expected fields %v, got %v", tc.fields, verr.Fields)
			}
			for _, f := range tc.fields {
				if verr.Fields[f] == "" {
					t.Errorf("missing message for %q in %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestCheck_BlankTitleMessage(t *testing.T) {
	err := Check(CreateSessionRequest{Title: " "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Fields["title"] != "this field cannot be blank" {
		t.Errorf("unexpected message %q", verr.Fields["title"])
	}
	if !strings.Contains(err.Error(), "title: this field cannot be blank") {
		t.Errorf("unexpected error text %q", err.Error())
	}
}

func TestCheck_RespondRequest(t *testing.T) {
	for _, action := range []string{ActionApprove, ActionReject} {
		if err := Check(RespondRequest{Action: action}); err != nil {
			t.Errorf("action %q: unexpected error %v", action, err)
		}
	}
	for _, action := range []string{"", "ban", "APPROVE"} {
		if err := Check(RespondRequest{Action: action}); err == nil {
			t.Errorf("action %q: expected error", action)
		}
	}
}

func TestCheck_RemoveParticipantRequest(t *testing.T) {
	if err := Check(RemoveParticipantRequest{}); err == nil {
		t.Error("expected error for missing user_id")
	}
	if err := Check(RemoveParticipantRequest{UserID: 4}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
