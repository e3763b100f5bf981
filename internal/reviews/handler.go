package reviews

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"toolshed/internal/sanitize"
	"toolshed/internal/security"
	"toolshed/pkg/models"
)

const (
	MaxUsernameLen = 50
	MaxReviewLen   = 2000
)

type Store interface {
	Append(ctx context.Context, username, text string, ts time.Time) (models.Review, error)
	Recent(ctx context.Context, limit int) ([]models.Review, error)
}

type Catalog interface {
	Load() []models.Tool
}

// Publisher receives every review once it is stored.
type Publisher interface {
	Publish(review models.Review)
}

type Recorder interface {
	ReviewSubmitted(outcome string)
}

// Handler serves the homepage: the catalog, the latest reviews and the
// review form.
type Handler struct {
	Repo    Store
	Catalog Catalog
	CSRF    *security.CSRF
	Feed    Publisher
	Metrics Recorder

	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(repo Store, catalog Catalog, csrf *security.CSRF, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Repo:    repo,
		Catalog: catalog,
		CSRF:    csrf,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.GET("/", chain(mw, h.index)...)
	r.POST("/", chain(mw, h.submit)...)
}

func chain(mw []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, last)
}

type reviewForm struct {
	Username  string `form:"username" binding:"required,max=50"`
	Review    string `form:"review" binding:"required,max=2000"`
	CSRFToken string `form:"csrf_token"`
}

type page struct {
	Tools     []models.Tool
	Reviews   []models.Review
	Form      reviewForm
	Errors    map[string]string
	CSRFToken string
}

func (h *Handler) index(c *gin.Context) {
	h.render(c, reviewForm{}, map[string]string{})
}

func (h *Handler) submit(c *gin.Context) {
	var form reviewForm
	errs := map[string]string{}

	if err := c.ShouldBind(&form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			// body was not a parseable form
			errs["review"] = "The form could not be read, please try again."
		}
		for _, fe := range verrs {
			field, msg := fieldMessage(fe)
			errs[field] = msg
		}
	}
	if err := h.CSRF.Check(c, form.CSRFToken); err != nil {
		errs[security.CSRFFieldName] = "The form expired, please submit it again."
	}

	// stored as sanitized; blank-after-sanitizing counts as missing
	username := sanitize.Text(form.Username)
	text := sanitize.Text(form.Review)
	if _, bad := errs["username"]; !bad && strings.TrimSpace(username) == "" {
		errs["username"] = "Username is required."
	}
	if _, bad := errs["review"]; !bad && strings.TrimSpace(text) == "" {
		errs["review"] = "Review is required."
	}

	if len(errs) > 0 {
		h.record("invalid")
		form.CSRFToken = ""
		h.render(c, form, errs)
		return
	}

	review, err := h.Repo.Append(c.Request.Context(), username, text, h.now().UTC().Truncate(time.Second))
	if err != nil {
		h.record("error")
		h.logger.Error("store review failed", zap.Error(err))
		_ = c.Error(err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Message": "Your review could not be saved. Please try again later.",
		})
		return
	}

	h.record("created")
	h.logger.Info("review stored", zap.Int64("id", review.ID), zap.String("username", review.Username))
	if h.Feed != nil {
		h.Feed.Publish(review)
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// render draws the homepage. Catalog and review failures degrade to empty
// lists; only a broken CSRF signer turns into a 500.
func (h *Handler) render(c *gin.Context, form reviewForm, errs map[string]string) {
	token, err := h.CSRF.Issue(c)
	if err != nil {
		h.logger.Error("issue csrf token failed", zap.Error(err))
		_ = c.Error(err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"Message": "The page could not be rendered."})
		return
	}

	recent, err := h.Repo.Recent(c.Request.Context(), RecentLimit)
	if err != nil {
		h.logger.Warn("load recent reviews failed", zap.Error(err))
		recent = nil
	}

	c.HTML(http.StatusOK, "index.html", page{
		Tools:     h.Catalog.Load(),
		Reviews:   recent,
		Form:      form,
		Errors:    errs,
		CSRFToken: token,
	})
}

func (h *Handler) record(outcome string) {
	if h.Metrics != nil {
		h.Metrics.ReviewSubmitted(outcome)
	}
}

func fieldMessage(fe validator.FieldError) (string, string) {
	field, label, limit := "review", "Review", MaxReviewLen
	if fe.Field() == "Username" {
		field, label, limit = "username", "Username", MaxUsernameLen
	}

	switch fe.Tag() {
	case "required":
		return field, label + " is required."
	case "max":
		return field, label + " must be at most " + strconv.Itoa(limit) + " characters."
	default:
		return field, label + " is invalid."
	}
}
