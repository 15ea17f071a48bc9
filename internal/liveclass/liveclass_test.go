package liveclass

import (
	"strings"
	"testing"
	"time"
)

func TestMeetingLink(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	got := MeetingLink(now)
	want := "https://meet.jit.si/SkillForge_Live_1700000000123"
	if got != want {
		t.Errorf("MeetingLink() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, MeetingBaseURL) {
		t.Errorf("MeetingLink() = %q, missing %q prefix", got, MeetingBaseURL)
	}
}

func TestViewer(t *testing.T) {
	tutor := Viewer{ID: 3, Name: "mr_tutor", Role: RoleTutor}
	student := Viewer{ID: 9, Name: "alice", Role: RoleStudent}

	if !tutor.IsTutor() {
		t.Error("tutor.IsTutor() = false")
	}
	if student.IsTutor() {
		t.Error("student.IsTutor() = true")
	}
	if tutor.Identity() != "3" {
		t.Errorf("tutor.Identity() = %q, want %q", tutor.Identity(), "3")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusPending, StatusApproved, StatusRejected} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "all", "PENDING"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

func TestValidateAction(t *testing.T) {
	if err := ValidateAction(ActionApprove); err != nil {
		t.Errorf("ValidateAction(approve) error: %v", err)
	}
	if err := ValidateAction(ActionReject); err != nil {
		t.Errorf("ValidateAction(reject) error: %v", err)
	}
	if err := ValidateAction("ban"); err == nil {
		t.Error("ValidateAction(ban) expected error")
	}
}
