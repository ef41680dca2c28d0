package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/external"
)

// BlogProvider fetches published posts from the upstream content service.
// Implemented by external.BlogClient behind a circuit breaker; an open
// breaker or upstream failure surfaces as UPSTREAM_CONTENT_UNAVAILABLE.
type BlogProvider interface {
	ListPosts(ctx context.Context) ([]*external.BlogPost, error)
	GetPost(ctx context.Context, slug string) (*external.BlogPost, error)
}

// BlogHandler serves the blogs namespace. Anonymous and read-only: posts
// are public marketing content, so no plan gating or quota applies.
type BlogHandler struct {
	provider BlogProvider
}

func NewBlogHandler(provider BlogProvider) *BlogHandler {
	return &BlogHandler{provider: provider}
}

// RegisterRoutes mounts blog routes on the provided chi.Router.
func (h *BlogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/blogs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{slug}", h.Get)
	})
}

func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.provider.ListPosts(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if posts == nil {
		posts = []*external.BlogPost{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"results": posts, "count": len(posts)})
}

func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.provider.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, post)
}
