package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillforge/liveclass/internal/liveclass"
)

// newTestRedisStore connects to a local Redis on a scratch database and
// flushes it before and after the test.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return NewRedisStoreWithClient(client)
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("redis", func(t *testing.T) { fn(t, newTestRedisStore(t)) })
}

// ---------------------------------------------------------------------------
// Test: Sessions
// ---------------------------------------------------------------------------

func TestStore_Sessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		first := &liveclass.Session{Title: "Algebra Basics", Topic: "Quadratics", Tutor: 1, TutorName: "ada",
			JitsiLink: "https://meet.jit.si/SkillForge_Live_1", IsActive: true, CreatedAt: base}
		second := &liveclass.Session{Title: "Geometry", Tutor: 1, IsActive: true, CreatedAt: base.Add(time.Minute)}
		for _, sess := range []*liveclass.Session{first, second} {
			if err := s.CreateSession(ctx, sess); err != nil {
				t.Fatalf("CreateSession: %v", err)
			}
		}
		if first.ID == 0 || second.ID == first.ID {
			t.Fatalf("expected distinct ids, got %d and %d", first.ID, second.ID)
		}

		got, err := s.GetSession(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.Title != "Algebra Basics" || got.Topic != "Quadratics" || got.TutorName != "ada" ||
			got.JitsiLink != first.JitsiLink || !got.IsActive || !got.CreatedAt.Equal(base) {
			t.Errorf("unexpected session %+v", got)
		}

		list, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 2 || list[0].ID != second.ID {
			t.Errorf("expected newest first, got %+v", list)
		}

		if err := s.SetSessionActive(ctx, first.ID, false); err != nil {
			t.Fatalf("SetSessionActive: %v", err)
		}
		got, _ = s.GetSession(ctx, first.ID)
		if got.IsActive {
			t.Error("expected session to be inactive")
		}

		if _, err := s.GetSession(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.SetSessionActive(ctx, 9999, false); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Test: Communities and join requests
// ---------------------------------------------------------------------------

func TestStore_Participants(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.PutCommunity(ctx, liveclass.Community{
			Slug: "maths", Name: "Maths", TutorID: 1,
			Participants: []liveclass.Participant{{ID: 3, Username: "cy"}},
		})
		if err != nil {
			t.Fatalf("PutCommunity: %v", err)
		}
		if err := s.AddParticipant(ctx, "maths", liveclass.Participant{ID: 2, Username: "bo"}); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}

		c, err := s.GetCommunity(ctx, "maths")
		if err != nil {
			t.Fatalf("GetCommunity: %v", err)
		}
		if c.TutorID != 1 || c.Name != "Maths" || len(c.Participants) != 2 || c.Participants[0].ID != 2 {
			t.Errorf("unexpected community %+v", c)
		}

		if err := s.RemoveParticipant(ctx, "maths", 2); err != nil {
			t.Fatalf("RemoveParticipant: %v", err)
		}
		if err := s.RemoveParticipant(ctx, "maths", 2); !errors.Is(err, ErrNotMember) {
			t.Errorf("expected ErrNotMember, got %v", err)
		}
		if err := s.AddParticipant(ctx, "nope", liveclass.Participant{ID: 1}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown community, got %v", err)
		}
		if _, err := s.GetCommunity(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_JoinRequests(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.PutCommunity(ctx, liveclass.Community{Slug: "maths", Name: "Maths", TutorID: 1})
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		a := &liveclass.JoinRequest{Community: "maths", UserID: 5, UserName: "eve",
			Status: liveclass.StatusPending, CreatedAt: base}
		b := &liveclass.JoinRequest{Community: "maths", UserID: 6, UserName: "fin",
			Status: liveclass.StatusPending, CreatedAt: base.Add(time.Second)}
		for _, jr := range []*liveclass.JoinRequest{a, b} {
			if err := s.SaveJoinRequest(ctx, jr); err != nil {
				t.Fatalf("SaveJoinRequest: %v", err)
			}
		}

		a.Status = liveclass.StatusRejected
		if err := s.SaveJoinRequest(ctx, a); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err := s.GetJoinRequest(ctx, "maths", a.ID)
		if err != nil || got.Status != liveclass.StatusRejected {
			t.Fatalf("GetJoinRequest = %+v, %v", got, err)
		}

		found, err := s.FindJoinRequest(ctx, "maths", 6)
		if err != nil || found.ID != b.ID {
			t.Fatalf("FindJoinRequest = %+v, %v", found, err)
		}
		if _, err := s.FindJoinRequest(ctx, "maths", 99); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		list, err := s.ListJoinRequests(ctx, "maths")
		if err != nil {
			t.Fatalf("ListJoinRequests: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID {
			t.Errorf("expected newest first, got %+v", list)
		}

		missing := &liveclass.JoinRequest{ID: 12345, Community: "maths", UserID: 7}
		if err := s.SaveJoinRequest(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound updating unknown request, got %v", err)
		}
		if err := s.SaveJoinRequest(ctx, &liveclass.JoinRequest{Community: "nope"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown community, got %v", err)
		}
	})
}
