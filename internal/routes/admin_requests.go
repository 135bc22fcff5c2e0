package routes

import (
	"net/http"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/notify"
	"csv-share-access/internal/utils"

	"github.com/gin-gonic/gin"
)

func (s *Server) listRequests(c *gin.Context) {
	requests, err := s.Recovery.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (s *Server) approveRequest(c *gin.Context) {
	req, err := s.Recovery.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	s.audit(c, audit.ActionRecoveryApproved, audit.Details{"request_id": req.ID, "link_id": req.LinkID})
	s.Notifier.NotifyLinkSubscribers(notifyCtx(c), req.LinkID, notify.Notification{
		Title: "Access approved",
		Body:  "Your access request was approved. Open the link on your device to continue.",
		URL:   utils.UrlFor(c, s.Config.BaseURL, utils.ViewerPath(req.LinkID)),
	})
	c.JSON(http.StatusOK, gin.H{"request": req})
}

func (s *Server) denyRequest(c *gin.Context) {
	req, err := s.Recovery.Deny(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionRecoveryDenied, audit.Details{"request_id": req.ID, "link_id": req.LinkID})
	c.JSON(http.StatusOK, gin.H{"request": req})
}

// listViewers lists authorized devices, optionally of one link.
func (s *Server) listViewers(c *gin.Context) {
	devices, err := s.Links.ListDevices(c.Request.Context(), c.Query("link_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": devices})
}

func (s *Server) revokeViewer(c *gin.Context) {
	id := c.Param("id")
	if err := s.Links.RevokeDevice(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionDeviceRevoked, audit.Details{"device_id": id})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
