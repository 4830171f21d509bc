package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type HTTPHandler struct {
	links      ports.LinkService
	analytics  ports.AnalyticsService
	validate   *validator.Validate
	trustProxy bool
	log        logrus.FieldLogger
}

// NewHTTPHandler builds the link API. trustProxy makes recorded click IPs come
// from X-Forwarded-For instead of the socket peer.
func NewHTTPHandler(links ports.LinkService, analytics ports.AnalyticsService, trustProxy bool, log logrus.FieldLogger) *HTTPHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("short_alias", func(fl validator.FieldLevel) bool {
		return domain.ValidAlias(fl.Field().String())
	})

	return &HTTPHandler{
		links:      links,
		analytics:  analytics,
		validate:   validate,
		trustProxy: trustProxy,
		log:        log,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginalURL string   `json:"original_url" validate:"required,max=2048"`
	CustomAlias string   `json:"custom_alias,omitempty" validate:"omitempty,max=64,short_alias"`
	ExpiryDays  *int     `json:"expiry_days,omitempty" validate:"omitempty,gte=0,lte=3650"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Description string   `json:"description" validate:"max=500"`
}

// UpdateLinkRequest payload. Omitted fields are left unchanged.
type UpdateLinkRequest struct {
	IsActive    *bool     `json:"is_active,omitempty"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=500"`
}

func (h *HTTPHandler) toResponse(l *domain.Link) LinkResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return LinkResponse{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		ShortURL:    h.links.ShortURL(l.ShortCode),
		ShortCode:   l.ShortCode,
		CustomAlias: l.CustomAlias,
		ClickCount:  l.ClickCount,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
		IsActive:    l.IsActive,
		IsExpired:   l.IsExpired(),
		Tags:        tags,
		Description: l.Description,
	}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CustomAlias = strings.TrimSpace(req.CustomAlias)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, err)
		return
	}

	link, err := h.links.Shorten(r.Context(), ports.ShortenInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiryDays:  req.ExpiryDays,
		OwnerID:     UserIDFromContext(r.Context()),
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	origin := "generated"
	if link.CustomAlias {
		origin = "alias"
	}
	metrics.LinksCreated.WithLabelValues(origin).Inc()

	writeJSON(w, http.StatusCreated, h.toResponse(link))
}

// Redirect to original URL. The click is stored before the redirect is sent.
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_code")
	if code == "" {
		writeJSONError(w, http.StatusBadRequest, "Short code missing")
		return
	}

	link, err := h.analytics.ResolveForRedirect(r.Context(), code)
	if err != nil {
		metrics.Redirects.WithLabelValues(redirectOutcome(err)).Inc()
		writeError(w, h.log, err)
		return
	}

	err = h.analytics.RecordClick(r.Context(), link, domain.ClickInput{
		IPAddress: clientIP(r, h.trustProxy),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	})
	if err != nil {
		metrics.Redirects.WithLabelValues(redirectOutcome(err)).Inc()
		writeError(w, h.log, err)
		return
	}

	metrics.Redirects.WithLabelValues("ok").Inc()
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

func redirectOutcome(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusGone:
		return "expired"
	case http.StatusForbidden:
		return "deactivated"
	default:
		return "error"
	}
}

// Get a single link summary
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.GetLinkByShortCode(r.Context(), r.PathValue("short_code"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// List the caller's links, newest first
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := UserIDFromContext(r.Context())
	if ownerID == nil {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	links, err := h.links.ListByOwner(r.Context(), *ownerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	data := make([]LinkResponse, 0, len(links))
	for i := range links {
		data = append(data, h.toResponse(&links[i]))
	}

	resp := map[string]interface{}{
		"data":  data,
		"count": len(data),
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, err)
		return
	}

	link, err := h.links.UpdateLink(r.Context(), r.PathValue("short_code"), UserIDFromContext(r.Context()), domain.LinkPatch{
		IsActive:    req.IsActive,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.links.DeleteLink(r.Context(), r.PathValue("short_code"), UserIDFromContext(r.Context())); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Analytics for a Link. Owned links are visible to their owner only.
func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.GetLinkByShortCode(r.Context(), r.PathValue("short_code"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !link.VisibleTo(UserIDFromContext(r.Context())) {
		writeError(w, h.log, domain.ErrForbidden)
		return
	}

	summary, err := h.analytics.GetAnalytics(r.Context(), link)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := AnalyticsResponse{Link: h.toResponse(link), Analytics: summary}
	resp.Link.ClickCount = summary.TotalClicks
	writeJSON(w, http.StatusOK, resp)
}
