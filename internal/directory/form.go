package directory

import (
	"context"

	"github.com/skillforge/liveclass/internal/liveclass"
)

// CreateForm holds the fields of the create-live-class form.
type CreateForm struct {
	Title string
	Topic string

	client *Client
}

// NewCreateForm returns an empty form that submits through c.
func NewCreateForm(c *Client) *CreateForm {
	return &CreateForm{client: c}
}

// Submit creates the live class. On failure the fields are kept so the user
// can correct and retry; on success they are cleared and the refreshed
// session list is returned along with the created session.
func (f *CreateForm) Submit(ctx context.Context) (*liveclass.Session, []liveclass.Session, error) {
	created, err := f.client.CreateSession(ctx, f.Title, f.Topic)
	if err != nil {
		return nil, nil, err
	}
	f.Title, f.Topic = "", ""

	sessions, err := f.client.ListSessions(ctx)
	if err != nil {
		return created, nil, err
	}
	return created, sessions, nil
}
