package routes

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"

	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	Kind     storage.SubscriptionKind `json:"kind"`
	LinkID   string                   `json:"link_id"`
	Endpoint string                   `json:"endpoint"`
	Keys     struct {
		Auth   string `json:"auth"`
		P256dh string `json:"p256dh"`
	} `json:"keys"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// validEndpoint accepts absolute https URLs, and http ones in dev.
func (s *Server) validEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "https" || (s.Config.Dev() && u.Scheme == "http")
}

// pushPublicKey returns the VAPID public key browsers subscribe with.
func (s *Server) pushPublicKey(c *gin.Context) {
	if !s.Config.Push.Ready() {
		AbortWithHTTPError(c, http.StatusNotFound, ErrNotFound, "Push notifications are not configured.", "PUSH_DISABLED")
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": s.Config.Push.VAPIDPublicKey})
}

// subscribe registers a push endpoint. Admin subscriptions need an admin
// session, viewer subscriptions an authorized device for the link.
func (s *Server) subscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	if !s.validEndpoint(req.Endpoint) {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Invalid push endpoint", "INVALID_ENDPOINT")
		return
	}
	if req.Keys.Auth == "" || req.Keys.P256dh == "" {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Missing subscription keys", "INVALID_KEYS")
		return
	}

	sub := storage.PushSubscription{
		ID:        utils.NewID(),
		Kind:      req.Kind,
		Endpoint:  req.Endpoint,
		Auth:      req.Keys.Auth,
		P256dh:    req.Keys.P256dh,
		CreatedAt: time.Now(),
	}

	switch req.Kind {
	case storage.SubscriptionAdmin:
		if !s.isAdmin(c) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
	case storage.SubscriptionViewer:
		token, ok := s.signedCookie(c, linkCookieName(req.LinkID))
		if req.LinkID == "" || !ok || !s.Links.ValidateDevice(c.Request.Context(), req.LinkID, token, fingerprint(c)) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		linkID := req.LinkID
		sub.LinkID = &linkID
	default:
		AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Unknown subscription kind", "INVALID_KIND")
		return
	}

	if err := s.Store.CreatePushSubscription(c.Request.Context(), sub); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	err := s.Store.DeletePushSubscriptionByEndpoint(c.Request.Context(), req.Endpoint)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
