package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/skillforge/liveclass/internal/liveclass"
)

type viewerKey struct{}

// Identity reads the viewer identity headers into the request context.
// Requests without a valid user id are anonymous.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v liveclass.Viewer
		if id, err := strconv.ParseInt(r.Header.Get(liveclass.HeaderUserID), 10, 64); err == nil && id > 0 {
			v.ID = id
			v.Name = strings.TrimSpace(r.Header.Get(liveclass.HeaderUserName))
			v.Role = strings.ToLower(strings.TrimSpace(r.Header.Get(liveclass.HeaderUserRole)))
			if v.Role != liveclass.RoleTutor {
				v.Role = liveclass.RoleStudent
			}
			if v.Name == "" {
				v.Name = "user" + strconv.FormatInt(id, 10)
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

// ViewerFrom returns the viewer attached by Identity. ok is false for
// anonymous requests.
func ViewerFrom(ctx context.Context) (v liveclass.Viewer, ok bool) {
	v, _ = ctx.Value(viewerKey{}).(liveclass.Viewer)
	return v, v.ID != 0
}
