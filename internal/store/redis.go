package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillforge/liveclass/internal/liveclass"
)

const (
	// KeyPrefix namespaces every key the store writes.
	KeyPrefix = "lc:"

	sessionSeqKey   = KeyPrefix + "session_seq"
	sessionIndexKey = KeyPrefix + "sessions"
	requestSeqKey   = KeyPrefix + "joinreq_seq"
)

func sessionKey(id int64) string { return KeyPrefix + "session:" + strconv.FormatInt(id, 10) }
func communityKey(slug string) string { return KeyPrefix + "community:" + slug }
func participantsKey(slug string) string { return communityKey(slug) + ":participants" }
func requestsKey(slug string) string { return communityKey(slug) + ":joinreqs" }
func requestsByUserKey(slug string) string { return communityKey(slug) + ":joinreq_by_user" }

// sessionRecord is the Redis hash layout of a live class.
type sessionRecord struct {
	ID        int64  `redis:"id"`
	Tutor     int64  `redis:"tutor"`
	TutorName string `redis:"tutor_name"`
	Title     string `redis:"title"`
	Topic     string `redis:"topic"`
	JitsiLink string `redis:"jitsi_link"`
	CreatedAt int64  `redis:"created_at"` // unix millis
	Active    int    `redis:"is_active"`  // 1 | 0
}

// communityRecord is the Redis hash layout of a community.
type communityRecord struct {
	Slug  string `redis:"slug"`
	Name  string `redis:"name"`
	Tutor int64  `redis:"tutor"`
}

// RedisStore keeps records in Redis hashes so several backend instances can
// share them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisAddr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CreateSession(ctx context.Context, sess *liveclass.Session) error {
	id, err := s.client.Incr(ctx, sessionSeqKey).Result()
	if err != nil {
		return fmt.Errorf("store: allocate session id: %w", err)
	}
	sess.ID = id
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	active := 0
	if sess.IsActive {
		active = 1
	}
	fields := map[string]interface{}{
		"id":         sess.ID,
		"tutor":      sess.Tutor,
		"tutor_name": sess.TutorName,
		"title":      sess.Title,
		"topic":      sess.Topic,
		"jitsi_link": sess.JitsiLink,
		"created_at": sess.CreatedAt.UnixMilli(),
		"is_active":  active,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(id), fields)
	pipe.SAdd(ctx, sessionIndexKey, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSession(ctx context.Context, id int64) (*liveclass.Session, error) {
	var rec sessionRecord
	if err := s.client.HGetAll(ctx, sessionKey(id)).Scan(&rec); err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, ErrNotFound
	}
	sess := rec.session()
	return &sess, nil
}

func (s *RedisStore) ListSessions(ctx context.Context) ([]liveclass.Session, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, KeyPrefix+"session:"+id)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]liveclass.Session, 0, len(ids))
	for _, cmd := range cmds {
		var rec sessionRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, err
		}
		if rec.ID == 0 {
			continue
		}
		out = append(out, rec.session())
	}
	sortSessions(out)
	return out, nil
}

func (s *RedisStore) SetSessionActive(ctx context.Context, id int64, active bool) error {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	v := 0
	if active {
		v = 1
	}
	return s.client.HSet(ctx, sessionKey(id), "is_active", v).Err()
}

func (s *RedisStore) PutCommunity(ctx context.Context, c liveclass.Community) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, communityKey(c.Slug), "slug", c.Slug, "name", c.Name, "tutor", c.TutorID)
	for _, p := range c.Participants {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, participantsKey(c.Slug), strconv.FormatInt(p.ID, 10), data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetCommunity(ctx context.Context, slug string) (*liveclass.Community, error) {
	var rec communityRecord
	if err := s.client.HGetAll(ctx, communityKey(slug)).Scan(&rec); err != nil {
		return nil, err
	}
	if rec.Slug == "" {
		return nil, ErrNotFound
	}

	raw, err := s.client.HGetAll(ctx, participantsKey(slug)).Result()
	if err != nil {
		return nil, err
	}
	c := &liveclass.Community{
		Slug:         rec.Slug,
		Name:         rec.Name,
		TutorID:      rec.Tutor,
		Participants: make([]liveclass.Participant, 0, len(raw)),
	}
	for _, v := range raw {
		var p liveclass.Participant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("store: decode participant: %w", err)
		}
		c.Participants = append(c.Participants, p)
	}
	sortParticipants(c.Participants)
	return c, nil
}

func (s *RedisStore) communityExists(ctx context.Context, slug string) error {
	n, err := s.client.Exists(ctx, communityKey(slug)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) AddParticipant(ctx context.Context, slug string, p liveclass.Participant) error {
	if err := s.communityExists(ctx, slug); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, participantsKey(slug), strconv.FormatInt(p.ID, 10), data).Err()
}

func (s *RedisStore) RemoveParticipant(ctx context.Context, slug string, userID int64) error {
	if err := s.communityExists(ctx, slug); err != nil {
		return err
	}
	n, err := s.client.HDel(ctx, participantsKey(slug), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotMember
	}
	return nil
}

func (s *RedisStore) SaveJoinRequest(ctx context.Context, jr *liveclass.JoinRequest) error {
	slug := jr.Community
	if err := s.communityExists(ctx, slug); err != nil {
		return err
	}
	field := strconv.FormatInt(jr.ID, 10)

	if jr.ID == 0 {
		id, err := s.client.Incr(ctx, requestSeqKey).Result()
		if err != nil {
			return fmt.Errorf("store: allocate join request id: %w", err)
		}
		jr.ID = id
		field = strconv.FormatInt(id, 10)
		if jr.CreatedAt.IsZero() {
			jr.CreatedAt = time.Now().UTC()
		}
	} else {
		ok, err := s.client.HExists(ctx, requestsKey(slug), field).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}

	data, err := json.Marshal(jr)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, requestsKey(slug), field, data)
	pipe.HSet(ctx, requestsByUserKey(slug), strconv.FormatInt(jr.UserID, 10), field)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetJoinRequest(ctx context.Context, slug string, id int64) (*liveclass.JoinRequest, error) {
	data, err := s.client.HGet(ctx, requestsKey(slug), strconv.FormatInt(id, 10)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var jr liveclass.JoinRequest
	if err := json.Unmarshal([]byte(data), &jr); err != nil {
		return nil, fmt.Errorf("store: decode join request: %w", err)
	}
	return &jr, nil
}

func (s *RedisStore) FindJoinRequest(ctx context.Context, slug string, userID int64) (*liveclass.JoinRequest, error) {
	id, err := s.client.HGet(ctx, requestsByUserKey(slug), strconv.FormatInt(userID, 10)).Int64()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetJoinRequest(ctx, slug, id)
}

func (s *RedisStore) ListJoinRequests(ctx context.Context, slug string) ([]liveclass.JoinRequest, error) {
	if err := s.communityExists(ctx, slug); err != nil {
		return nil, err
	}
	raw, err := s.client.HVals(ctx, requestsKey(slug)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]liveclass.JoinRequest, 0, len(raw))
	for _, v := range raw {
		var jr liveclass.JoinRequest
		if err := json.Unmarshal([]byte(v), &jr); err != nil {
			return nil, fmt.Errorf("store: decode join request: %w", err)
		}
		out = append(out, jr)
	}
	sortJoinRequests(out)
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (r sessionRecord) session() liveclass.Session {
	return liveclass.Session{
		ID:        r.ID,
		Tutor:     r.Tutor,
		TutorName: r.TutorName,
		Title:     r.Title,
		Topic:     r.Topic,
		JitsiLink: r.JitsiLink,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		IsActive:  r.Active == 1,
	}
}
