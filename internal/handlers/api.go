package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/gate"
	"folio/internal/interact"
	"folio/internal/middleware"
	"folio/internal/models"
)

// streamHeartbeat keeps idle event streams open through proxies.
const streamHeartbeat = 25 * time.Second

// API serves the JSON endpoints behind the post page: likes, comments and
// the live interaction stream.
type API struct {
	svc   *interact.Service
	posts PostRepository

	closing   chan struct{}
	closeOnce sync.Once
}

// NewAPI creates the API handler group.
func NewAPI(svc *interact.Service, posts PostRepository) *API {
	return &API{svc: svc, posts: posts, closing: make(chan struct{})}
}

// CloseStreams ends every open event stream. Register it with
// http.Server.RegisterOnShutdown: a heartbeat keeps stream connections
// active, so Shutdown would otherwise wait out its deadline.
func (a *API) CloseStreams() {
	a.closeOnce.Do(func() { close(a.closing) })
}

// commentView is a comment as one viewer sees it.
type commentView struct {
	models.Comment
	CanDelete bool `json:"can_delete"`
}

type likesView struct {
	Count int  `json:"count"`
	Liked bool `json:"liked"`
}

// viewer returns the requesting identity, or the zero identity for
// anonymous requests.
func viewer(r *http.Request) gate.Identity {
	if id := middleware.SessionFromCtx(r.Context()).Identity(); id != nil {
		return *id
	}
	return gate.Identity{}
}

func (a *API) likesView(likes []models.Like, who gate.Identity) likesView {
	return likesView{Count: len(likes), Liked: who.UserID != uuid.Nil && likedBy(likes, who.UserID)}
}

func (a *API) commentViews(comments []models.Comment, who gate.Identity) []commentView {
	out := make([]commentView, len(comments))
	for i, c := range comments {
		out[i] = commentView{Comment: c, CanDelete: a.svc.CanDelete(c, who)}
	}
	return out
}

// publishedPost resolves the {id} parameter to a published post, writing
// the error response when it does not resolve.
func (a *API) publishedPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid post id")
		return nil, false
	}
	post, err := a.posts.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("find post failed", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if post == nil || !post.IsPublished() {
		writeJSONError(w, http.StatusNotFound, "post not found")
		return nil, false
	}
	return post, true
}

// Interactions returns the current likes and comments of a post.
func (a *API) Interactions(w http.ResponseWriter, r *http.Request) {
	post, ok := a.publishedPost(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	who := viewer(r)

	likes, err := a.svc.Likes(ctx, post.ID)
	if err != nil {
		slog.Error("load likes failed", "error", err, "post_id", post.ID)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	comments, err := a.svc.Comments(ctx, post.ID)
	if err != nil {
		slog.Error("load comments failed", "error", err, "post_id", post.ID)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"likes":    a.likesView(likes, who),
		"comments": a.commentViews(comments, who),
	})
}

// Stream pushes "likes" and "comments" server-sent events: one snapshot of
// each right away, then a fresh snapshot after every change.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	post, ok := a.publishedPost(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	who := viewer(r)

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("clear stream write deadline failed", "error", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("stream flush unsupported", "error", err)
		return
	}

	type event struct {
		name    string
		payload any
	}
	events := make(chan event, 8)
	send := func(e event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}

	likesSub := a.svc.SubscribeLikes(ctx, post.ID, func(likes []models.Like) {
		send(event{name: "likes", payload: a.likesView(likes, who)})
	})
	defer likesSub.Close()
	commentsSub := a.svc.SubscribeComments(ctx, post.ID, func(comments []models.Comment) {
		send(event{name: "comments", payload: a.commentViews(comments, who)})
	})
	defer commentsSub.Close()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case e := <-events:
			data, err := json.Marshal(e.payload)
			if err != nil {
				slog.Error("encode stream event failed", "error", err, "event", e.name)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Like toggles the requester's like on a post.
func (a *API) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	ctx := r.Context()
	who := viewer(r)

	liked, err := a.svc.ToggleLike(ctx, id, who.UserID)
	if err != nil {
		a.interactionError(w, err, "toggle like", id)
		return
	}
	likes, err := a.svc.Likes(ctx, id)
	if err != nil {
		slog.Error("load likes failed", "error", err, "post_id", id)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, likesView{Count: len(likes), Liked: liked})
}

// Comment adds a comment from the requester. The body is {"text": "..."}.
func (a *API) Comment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := middleware.SessionFromCtx(r.Context())
	var author interact.Author
	if sess != nil {
		author = interact.Author{UserID: sess.UserID, DisplayName: sess.DisplayName, AvatarURL: sess.AvatarURL}
	}

	c, err := a.svc.AddComment(r.Context(), id, author, body.Text)
	if err != nil {
		a.interactionError(w, err, "add comment", id)
		return
	}

	slog.Info("comment added", "id", c.ID, "post_id", id, "user_id", c.UserID)
	writeJSON(w, http.StatusCreated, commentView{Comment: *c, CanDelete: true})
}

// DeleteComment removes a comment written by the requester. The admin may
// remove any comment.
func (a *API) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	if err := a.svc.DeleteComment(r.Context(), id, viewer(r)); err != nil {
		a.interactionError(w, err, "delete comment", id)
		return
	}

	slog.Info("comment deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// interactionError maps service errors to JSON responses.
func (a *API) interactionError(w http.ResponseWriter, err error, op string, id uuid.UUID) {
	switch {
	case errors.Is(err, interact.ErrEmptyComment):
		writeJSONError(w, http.StatusBadRequest, "Comment cannot be empty.")
	case errors.Is(err, interact.ErrCommentTooLong):
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Comment must be at most %d characters.", interact.MaxCommentLength))
	case errors.Is(err, interact.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, interact.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "You can only delete your own comments.")
	case errors.Is(err, interact.ErrUnknownUser):
		writeJSONError(w, http.StatusUnauthorized, "Sign in to continue.")
	default:
		slog.Error(op+" failed", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
