package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/accounts"
	"github.com/cratedig/cratedig/config"
	"github.com/cratedig/cratedig/mail"
	"github.com/cratedig/cratedig/search"
	"github.com/cratedig/cratedig/utils"
)

// Handlers is the thin HTTP glue over the core stores. Nothing here touches
// pebble directly; it is all narrow-interface calls and status mapping.
type Handlers struct {
	cfg      *config.AppConfig
	log      utils.Logger
	posts    *cratedig.PostStore
	feed     *cratedig.FeedReader
	index    *search.Index
	accounts *accounts.Store
	mailer   mail.Sender
	revoked  *revoked
}

func NewHandlers(
	cfg *config.AppConfig,
	log utils.Logger,
	posts *cratedig.PostStore,
	feed *cratedig.FeedReader,
	index *search.Index,
	acc *accounts.Store,
	mailer mail.Sender,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log,
		posts:    posts,
		feed:     feed,
		index:    index,
		accounts: acc,
		mailer:   mailer,
		revoked:  newRevoked(),
	}
}

func (h *Handlers) sessionTTL() time.Duration {
	return time.Duration(h.cfg.SessionTTLHours) * time.Hour
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func viewOf(u *accounts.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name}
}

type credentialsReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) signup(ctx *gin.Context) {
	var req credentialsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "email and password required")
		return
	}
	user, err := h.accounts.Signup(req.Email, req.Password)
	if err != nil {
		Fail(ctx, err)
		return
	}
	token, err := GenerateToken(h.cfg.JWTSecret, user.ID, user.Email, h.sessionTTL())
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"token": token, "user": viewOf(user)})
}

func (h *Handlers) login(ctx *gin.Context) {
	var req credentialsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "email and password required")
		return
	}
	user, err := h.accounts.Login(req.Email, req.Password)
	if err != nil {
		Fail(ctx, err)
		return
	}
	token, err := GenerateToken(h.cfg.JWTSecret, user.ID, user.Email, h.sessionTTL())
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"token": token, "user": viewOf(user)})
}

func (h *Handlers) logout(ctx *gin.Context) {
	token := ctx.GetString(ContextTokenKey)
	h.revoked.add(token, time.Now().Add(h.sessionTTL()))
	Success(ctx, gin.H{"ok": true})
}

func (h *Handlers) forgotPassword(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "email required")
		return
	}
	token, err := h.accounts.RequestReset(req.Email)
	if err != nil {
		// No account enumeration: a miss looks exactly like a success.
		Success(ctx, gin.H{"ok": true})
		return
	}
	link := h.cfg.ExternalDomain + "/password/reset?uid=" + token + "&email=" + req.Email
	go func(email, link string) {
		if err := h.mailer.SendPasswordReset(email, link); err != nil {
			h.log.Error("unable to send reset mail", "to", email, "err", err)
		}
	}(req.Email, link)
	Success(ctx, gin.H{"ok": true})
}

func (h *Handlers) resetPassword(ctx *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		Token     string `json:"token" binding:"required"`
		Password1 string `json:"password1" binding:"required"`
		Password2 string `json:"password2" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "email, token and passwords required")
		return
	}
	if req.Password1 != req.Password2 {
		Error(ctx, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := h.accounts.ResetPassword(req.Email, req.Token, req.Password1); err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"ok": true})
}

func (h *Handlers) globalFeed(ctx *gin.Context) {
	posts, err := h.feed.GlobalFeed(intQuery(ctx, "limit", 0))
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, posts)
}

func (h *Handlers) dashboard(ctx *gin.Context) {
	posts, err := h.feed.OwnerTimeline(ctx.GetString(ContextUserIDKey), 0)
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, posts)
}

func (h *Handlers) userTimeline(ctx *gin.Context) {
	posts, err := h.feed.OwnerTimeline(ctx.Param("uid"), 0)
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, posts)
}

type postReq struct {
	Title        string `json:"title" binding:"required"`
	Artist       string `json:"artist" binding:"required"`
	Tracklisting string `json:"tracklisting"`
	Notes        string `json:"notes"`
}

func (req postReq) fields() cratedig.PostFields {
	return cratedig.PostFields{
		Title:        req.Title,
		Artist:       req.Artist,
		Tracklisting: req.Tracklisting,
		Notes:        req.Notes,
	}
}

func (h *Handlers) createPost(ctx *gin.Context) {
	var req postReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "title and artist required")
		return
	}
	id, err := h.posts.Create(ctx.GetString(ContextUserIDKey), req.fields())
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"id": id})
}

func (h *Handlers) getPost(ctx *gin.Context) {
	post, err := h.posts.Get(ctx.Param("pid"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	owner := ctx.GetString(ContextUserIDKey)
	Success(ctx, gin.H{"post": post, "isOwner": owner != "" && owner == post.Owner})
}

func (h *Handlers) updatePost(ctx *gin.Context) {
	var req struct {
		postReq
		Created int64 `json:"created" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "title, artist and created required")
		return
	}
	err := h.posts.Update(ctx.GetString(ContextUserIDKey), req.Created, req.fields())
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"ok": true})
}

func (h *Handlers) deletePost(ctx *gin.Context) {
	var req struct {
		ID      string `json:"id" binding:"required"`
		Created int64  `json:"created" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "id and created required")
		return
	}
	err := h.posts.Delete(ctx.GetString(ContextUserIDKey), req.Created, req.ID)
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"ok": true})
}

func (h *Handlers) sharePost(ctx *gin.Context) {
	id, err := h.posts.Share(ctx.Param("pid"), ctx.GetString(ContextUserIDKey))
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, gin.H{"id": id})
}

func (h *Handlers) findPosts(ctx *gin.Context) {
	posts, err := h.index.Find(ctx.Query("q"), intQuery(ctx, "limit", 0))
	if err != nil {
		Fail(ctx, err)
		return
	}
	Success(ctx, posts)
}

// intQuery reads a non-negative integer query parameter. Negative values
// fall back too: the unbounded scan mode stays off the public API.
func intQuery(ctx *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(ctx.Query(name))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
