// Package directory is the REST client for the live-class directory: listing,
// creating and closing live classes, and the community join-request and
// participant panels. Every call carries the viewer identity headers.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/metrics"
)

// ValidationError is returned by CreateSession when input fails validation.
// No request is made in that case.
type ValidationError = liveclass.ValidationError

// Filters accepted by JoinRequests.
const (
	FilterPending  = liveclass.StatusPending
	FilterApproved = liveclass.StatusApproved
	FilterRejected = liveclass.StatusRejected
	FilterAll      = "all"
)

// RequestError is returned when the backend answers with a non-2xx status or
// cannot be reached. Status is zero for transport failures.
type RequestError struct {
	Op      string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("directory: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("directory: %s: %d %s", e.Op, e.Status, e.Message)
}

// Config holds the REST endpoint settings.
type Config struct {
	BaseURL string        `env:"URL" envDefault:"http://127.0.0.1:8000/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns the settings used against a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8000/api",
		Timeout: 10 * time.Second,
	}
}

// Client calls the directory REST resources on behalf of one viewer.
type Client struct {
	base   *url.URL
	http   *http.Client
	viewer liveclass.Viewer
	now    func() time.Time
}

// New creates a Client for viewer.
func New(config Config, viewer liveclass.Viewer) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(config.BaseURL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("directory: invalid base URL %q", config.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: config.Timeout},
		viewer: viewer,
		now:    time.Now,
	}, nil
}

// Viewer returns the identity the client acts as.
func (c *Client) Viewer() liveclass.Viewer {
	return c.viewer
}

// ---------------------------------------------------------------------------
// Live classes
// ---------------------------------------------------------------------------

// ListSessions returns the active live classes, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]liveclass.Session, error) {
	var out []liveclass.Session
	if err := c.do(ctx, "list sessions", http.MethodGet, "live-classes/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns one active live class.
func (c *Client) GetSession(ctx context.Context, id int64) (*liveclass.Session, error) {
	var out liveclass.Session
	if err := c.do(ctx, "get session", http.MethodGet, sessionPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession validates the input, generates the meeting link and creates
// the live class.
func (c *Client) CreateSession(ctx context.Context, title, topic string) (*liveclass.Session, error) {
	req := liveclass.CreateSessionRequest{
		Title:     strings.TrimSpace(title),
		Topic:     strings.TrimSpace(topic),
		JitsiLink: liveclass.MeetingLink(c.now()),
	}
	if err := liveclass.Check(req); err != nil {
		return nil, err
	}

	var out liveclass.Session
	if err := c.do(ctx, "create session", http.MethodPost, "live-classes/", req, &out); err != nil {
		return nil, err
	}
	log.Printf("[directory] created live class id=%d title=%q", out.ID, out.Title)
	return &out, nil
}

// CloseSession ends a live class. The backend keeps the record but stops
// listing it.
func (c *Client) CloseSession(ctx context.Context, id int64) error {
	if err := c.do(ctx, "close session", http.MethodDelete, sessionPath(id), nil, nil); err != nil {
		return err
	}
	log.Printf("[directory] closed live class id=%d", id)
	return nil
}

// ---------------------------------------------------------------------------
// Community join requests and participants
// ---------------------------------------------------------------------------

// JoinCommunity files a join request, or joins directly for tutors. It
// returns the backend's message.
func (c *Client) JoinCommunity(ctx context.Context, slug string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, "join community", http.MethodPost, communityPath(slug, "join/"), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// JoinRequests returns the community's join requests whose status matches
// filter, newest first. FilterAll or an empty filter returns every request.
func (c *Client) JoinRequests(ctx context.Context, slug, filter string) ([]liveclass.JoinRequest, error) {
	if filter != "" && filter != FilterAll && !liveclass.ValidStatus(filter) {
		return nil, fmt.Errorf("directory: unknown join request filter %q", filter)
	}
	var all []liveclass.JoinRequest
	if err := c.do(ctx, "list join requests", http.MethodGet, communityPath(slug, "join-requests/"), nil, &all); err != nil {
		return nil, err
	}
	if filter == "" || filter == FilterAll {
		return all, nil
	}
	out := make([]liveclass.JoinRequest, 0, len(all))
	for _, jr := range all {
		if jr.Status == filter {
			out = append(out, jr)
		}
	}
	return out, nil
}

// RespondJoinRequest approves or rejects a request and returns the refetched
// request list.
func (c *Client) RespondJoinRequest(ctx context.Context, slug string, id int64, action string) ([]liveclass.JoinRequest, error) {
	body := liveclass.RespondRequest{Action: action}
	if err := liveclass.Check(body); err != nil {
		return nil, err
	}
	path := communityPath(slug, "join-requests/"+strconv.FormatInt(id, 10)+"/approve/")
	if err := c.do(ctx, "respond join request", http.MethodPost, path, body, nil); err != nil {
		return nil, err
	}
	log.Printf("[directory] join request %s community=%s id=%d", action, slug, id)
	return c.JoinRequests(ctx, slug, FilterAll)
}

// Participants returns the members of a community ordered by id.
func (c *Client) Participants(ctx context.Context, slug string) ([]liveclass.Participant, error) {
	var out liveclass.Community
	if err := c.do(ctx, "get community", http.MethodGet, communityPath(slug, ""), nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// RemoveParticipant removes a member and returns the refetched participant
// list.
func (c *Client) RemoveParticipant(ctx context.Context, slug string, userID int64) ([]liveclass.Participant, error) {
	body := liveclass.RemoveParticipantRequest{UserID: userID}
	if err := liveclass.Check(body); err != nil {
		return nil, err
	}
	if err := c.do(ctx, "remove participant", http.MethodPost, communityPath(slug, "remove-participant/"), body, nil); err != nil {
		return nil, err
	}
	log.Printf("[directory] removed participant community=%s user=%d", slug, userID)
	return c.Participants(ctx, slug)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func sessionPath(id int64) string {
	return "live-classes/" + strconv.FormatInt(id, 10) + "/"
}

func communityPath(slug, rest string) string {
	return "community/" + slug + "/" + rest
}

// do performs one JSON round trip. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	start := time.Now()
	defer func() {
		metrics.DirectoryRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("directory: %s: marshal: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(&url.URL{Path: path}).String(), body)
	if err != nil {
		return fmt.Errorf("directory: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.viewer.ID != 0 {
		req.Header.Set(liveclass.HeaderUserID, strconv.FormatInt(c.viewer.ID, 10))
		req.Header.Set(liveclass.HeaderUserName, c.viewer.Name)
		req.Header.Set(liveclass.HeaderUserRole, c.viewer.Role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[directory] %s failed: %v", op, err)
		return &RequestError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var eb messageResponse
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		log.Printf("[directory] %s failed: status=%d error=%q", op, resp.StatusCode, msg)
		return &RequestError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("directory: %s: decode response: %w", op, err)
	}
	return nil
}
