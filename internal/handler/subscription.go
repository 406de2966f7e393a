package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/maktaba-app/maktaba/internal/auth"
	"github.com/maktaba-app/maktaba/internal/catalog"
	"github.com/maktaba-app/maktaba/internal/service"
)

// SubscriptionHandler serves the user-facing subscription surface: the
// tier catalog for the paywall screen and the one-time trial.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	users         service.UserService
	tiers         catalog.Store
	logger        *slog.Logger
}

func NewSubscriptionHandler(subscriptions service.SubscriptionService, users service.UserService, tiers catalog.Store, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		users:         users,
		tiers:         tiers,
		logger:        logger,
	}
}

// Tiers handles GET /api/tiers, the public tier catalog the paywall
// screen renders.
func (h *SubscriptionHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	settings, err := h.tiers.ListSettings(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tiers": settings})
}

// ActivateTrial handles POST /api/trial. The promo code is optional
// unless promo gating is enabled in configuration.
func (h *SubscriptionHandler) ActivateTrial(w http.ResponseWriter, r *http.Request) {
	const op = "SubscriptionHandler.ActivateTrial"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		PromoCode string `json:"promoCode"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(op, w, r, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	sub, err := h.subscriptions.ActivateTrial(r.Context(), user.ID, strings.TrimSpace(req.PromoCode))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Reload so the response reflects the new subscription and trial.
	refreshed, err := h.users.GetByID(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": newUserView(refreshed),
		"subscription": subscriptionView{
			Tier:      sub.Tier,
			IsActive:  sub.IsActive,
			ExpiresAt: sub.ExpiresAt,
			StartedAt: sub.StartedAt,
		},
	})
}
