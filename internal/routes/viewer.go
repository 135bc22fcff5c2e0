package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/links"
	"csv-share-access/internal/notify"
	"csv-share-access/internal/ratelimit"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/validate"

	"github.com/gin-gonic/gin"
)

type viewerLoginRequest struct {
	Password string `json:"password"`
}

type recoveryRequest struct {
	Message string `json:"message"`
}

// access is the outcome of checking a viewer's cookies.
type access int

const (
	accessDenied access = iota
	accessGranted
	accessPending
)

// viewerAccess checks the device cookie and then a pending request cookie.
// An approved request is redeemed here and swapped for a device cookie.
func (s *Server) viewerAccess(c *gin.Context, linkID, fp string) (access, []string, error) {
	ctx := c.Request.Context()

	if token, ok := s.signedCookie(c, linkCookieName(linkID)); ok {
		if s.Links.ValidateDevice(ctx, linkID, token, fp) {
			return accessGranted, nil, nil
		}
		s.clearCookie(c, linkCookieName(linkID))
	}

	requestID, ok := s.signedCookie(c, requestCookieName(linkID))
	if !ok {
		return accessDenied, nil, nil
	}

	approval, err := s.Recovery.CheckApproved(ctx, requestID)
	if err != nil {
		return accessDenied, nil, err
	}
	switch {
	case approval == nil || approval.LinkID != linkID:
		s.clearCookie(c, requestCookieName(linkID))
		return accessDenied, nil, nil
	case approval.Status == recovery.StatusPending:
		return accessPending, nil, nil
	case approval.Status == recovery.StatusDenied:
		s.clearCookie(c, requestCookieName(linkID))
		return accessDenied, []string{"REQUEST_DENIED"}, nil
	case approval.Consumed:
		s.clearCookie(c, requestCookieName(linkID))
		return accessDenied, []string{"REQUEST_ALREADY_USED"}, nil
	}

	token, err := s.Recovery.Redeem(ctx, requestID, linkID, fp)
	if errors.Is(err, links.ErrRequestAlreadyUsed) {
		s.clearCookie(c, requestCookieName(linkID))
		return accessDenied, []string{"REQUEST_ALREADY_USED"}, nil
	}
	if err != nil {
		return accessDenied, nil, err
	}

	s.setCookie(c, linkCookieName(linkID), s.Signer.Sign(token), LINK_COOKIE_TTL)
	s.clearCookie(c, requestCookieName(linkID))
	s.audit(c, audit.ActionViewerActivated, audit.Details{"link_id": linkID, "request_id": requestID})
	return accessGranted, nil, nil
}

// activeLink loads the link of a viewer route. Missing and disabled links
// answer alike.
func (s *Server) activeLink(c *gin.Context, linkID string) (*storage.AccessLink, bool) {
	link, err := s.Links.ActiveLink(c.Request.Context(), linkID)
	switch {
	case errors.Is(err, links.ErrLinkNotFound), errors.Is(err, links.ErrLinkInactive):
		AbortWithError(c, links.ErrLinkInactive)
		return nil, false
	case err != nil:
		fail(c, err)
		return nil, false
	}
	return link, true
}

// viewLink returns the rows of the current file a link may see.
func (s *Server) viewLink(c *gin.Context) {
	ctx := c.Request.Context()
	linkID := c.Param("linkId")

	link, ok := s.activeLink(c, linkID)
	if !ok {
		return
	}

	state, codes, err := s.viewerAccess(c, linkID, fingerprint(c))
	if err != nil {
		fail(c, err)
		return
	}
	switch state {
	case accessPending:
		c.JSON(http.StatusAccepted, gin.H{"status": recovery.StatusPending, "link": gin.H{"id": link.ID, "name": link.Name}})
		return
	case accessDenied:
		codes = append([]string{"PASSWORD_REQUIRED"}, codes...)
		if link.PasswordUsedAt != nil {
			codes = append(codes, "LINK_ALREADY_CLAIMED")
		}
		AbortWithHTTPError(c, http.StatusUnauthorized, ErrUnauthorized, "Password required", codes...)
		return
	}

	file, err := s.Files.Current(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if file == nil {
		AbortWithHTTPError(c, http.StatusNotFound, ErrNotFound, "No data available yet.", "NO_DATA")
		return
	}

	table, err := s.Files.Table(ctx, file)
	if err != nil {
		fail(c, err)
		return
	}
	view := dataset.BuildView(table, file.Schema.V, link.Criteria.V, link.DisplayOptions.V)

	c.JSON(http.StatusOK, gin.H{
		"link": gin.H{"id": link.ID, "name": link.Name},
		"file": gin.H{
			"filename":       file.Filename,
			"uploaded_at":    file.UploadedAt,
			"update_message": file.UpdateMessage,
		},
		"view": view,
	})
}

// viewerLogin spends the one-time link password on this device.
func (s *Server) viewerLogin(c *gin.Context) {
	ctx := c.Request.Context()
	linkID := c.Param("linkId")
	if !s.allow(c, ratelimit.KindLinkLogin, linkID) {
		return
	}

	var req viewerLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validate.Required("password", req.Password, "Password required"); err != nil {
		AbortWithError(c, err)
		return
	}

	check, err := s.Links.VerifyLinkPassword(ctx, linkID, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	if !check.Valid {
		slog.Warn("Link login failed", "link_id", linkID, "ip", c.ClientIP())
		AbortWithError(c, ErrInvalidCredentials)
		return
	}
	if check.AlreadyUsed {
		AbortWithError(c, links.ErrPasswordAlreadyUsed)
		return
	}

	token, err := s.Links.ActivateDevice(ctx, links.Activation{
		LinkID:           linkID,
		Fingerprint:      fingerprint(c),
		MarkPasswordUsed: true,
	})
	if err != nil {
		fail(c, err)
		return
	}

	s.setCookie(c, linkCookieName(linkID), s.Signer.Sign(token), LINK_COOKIE_TTL)
	s.audit(c, audit.ActionViewerActivated, audit.Details{"link_id": linkID})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// viewerRequest files a recovery request for a device that lost access.
func (s *Server) viewerRequest(c *gin.Context) {
	ctx := c.Request.Context()
	linkID := c.Param("linkId")
	if !s.allow(c, ratelimit.KindRecovery, linkID) {
		return
	}

	var req recoveryRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validate.RecoveryMessage(req.Message); err != nil {
		AbortWithError(c, err)
		return
	}
	if _, ok := s.activeLink(c, linkID); !ok {
		return
	}

	request, err := s.Recovery.Submit(ctx, linkID, fingerprint(c), req.Message)
	if err != nil {
		fail(c, err)
		return
	}

	s.setCookie(c, requestCookieName(linkID), s.Signer.Sign(request.ID), REQUEST_COOKIE_TTL)
	s.audit(c, audit.ActionRecoveryRequested, audit.Details{"link_id": linkID, "request_id": request.ID})
	s.notifyRecovery(c, request)

	c.JSON(http.StatusCreated, gin.H{"request_id": request.ID, "status": request.Status})
}

func (s *Server) notifyRecovery(c *gin.Context, request *storage.RecoveryRequest) {
	body := "A viewer asked for access again."
	if request.Message != "" {
		body = request.Message
	}
	s.Notifier.NotifyAdmins(notifyCtx(c), notify.Notification{
		Title: "New access request",
		Body:  body,
		Data:  map[string]string{"request_id": request.ID, "link_id": request.LinkID},
	})
}
