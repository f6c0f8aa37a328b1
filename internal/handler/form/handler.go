// Package form serves the HTML password check form.
package form

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pwcheck/internal/middleware"
	"github.com/jwalitptl/pwcheck/internal/policy"
	"github.com/jwalitptl/pwcheck/internal/service/check"
	"github.com/jwalitptl/pwcheck/internal/session"
	"github.com/jwalitptl/pwcheck/pkg/errors"
)

const templateName = "index.html"

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded form templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type Handler struct {
	svc    *check.Service
	store  session.Store
	cookie CookieConfig
}

func NewHandler(svc *check.Service, store session.Store, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "pwcheck_session"
	}
	return &Handler{
		svc:    svc,
		store:  store,
		cookie: cookie,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/", h.Show)
	r.POST("/", h.Submit)
}

// Show renders an empty form. A fresh visit forgets that a hash was shown.
func (h *Handler) Show(c *gin.Context) {
	if id, ok := h.sessionID(c); ok {
		if err := h.store.Delete(c.Request.Context(), id); err != nil {
			_ = c.Error(errors.Unavailable("session store", err))
			return
		}
	}
	c.HTML(http.StatusOK, templateName, page(nil))
}

// Submit runs one check. Rejections and accepted hashes render the form;
// everything else redirects back to a fresh form.
func (h *Handler) Submit(c *gin.Context) {
	ctx := check.WithRequestID(c.Request.Context(), c.GetString(middleware.ContextRequestID))

	id, ok := h.sessionID(c)
	if !ok {
		id = session.NewID()
		h.setCookie(c, id)
	}

	st, err := h.store.Load(ctx, id)
	if err != nil {
		_ = c.Error(errors.Unavailable("session store", err))
		return
	}

	res, err := h.svc.Submit(ctx, &st, check.Submission{
		Action:   c.PostForm("action"),
		Password: c.PostForm("password"),
	})
	if err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	switch res.Outcome {
	case check.OutcomeRejected:
		c.HTML(http.StatusOK, templateName, page(gin.H{"Errors": res.Violations}))
	case check.OutcomeAccepted:
		// A concurrent request in the same session may have shown its hash
		// first; only the winner renders.
		won, err := h.store.Claim(ctx, id)
		if err != nil {
			_ = c.Error(errors.Unavailable("session store", err))
			return
		}
		if !won {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.HTML(http.StatusOK, templateName, page(gin.H{
			"Hash":     res.Hash,
			"HashType": res.HashType,
		}))
	default:
		c.Redirect(http.StatusSeeOther, "/")
	}
}

func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	id, err := c.Cookie(h.cookie.Name)
	if err != nil || !session.ValidID(id) {
		return "", false
	}
	return id, true
}

func (h *Handler) setCookie(c *gin.Context, id string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func page(data gin.H) gin.H {
	out := gin.H{
		"MinLength":    policy.MinLength,
		"SpecialChars": policy.SpecialChars,
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}
