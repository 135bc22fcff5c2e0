package routes

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) AdminRoutes(r *gin.RouterGroup) {
	r.POST("/login", s.adminLogin)

	auth := r.Group("", s.RequireAdmin())
	auth.POST("/logout", s.adminLogout)

	auth.GET("/files", s.listFiles)
	auth.POST("/files", s.uploadFile)
	auth.POST("/files/:id/activate", s.activateFile)
	auth.POST("/files/:id/message", s.updateFileMessage)
	auth.DELETE("/files/:id", s.deleteFile)

	auth.GET("/links", s.listLinks)
	auth.POST("/links", s.createLink)
	auth.PATCH("/links/:id", s.updateLink)
	auth.DELETE("/links/:id", s.deleteLink)
	auth.GET("/links/:id/qr.png", s.linkQR)

	auth.GET("/requests", s.listRequests)
	auth.POST("/requests/:id/approve", s.approveRequest)
	auth.POST("/requests/:id/deny", s.denyRequest)

	auth.GET("/viewers", s.listViewers)
	auth.DELETE("/viewers/:id", s.revokeViewer)
}

func (s *Server) ViewerRoutes(r *gin.RouterGroup) {
	r.GET("/:linkId", s.viewLink)
	r.POST("/:linkId/login", s.viewerLogin)
	r.POST("/:linkId/request", s.viewerRequest)
}

func (s *Server) PushRoutes(r *gin.RouterGroup) {
	r.GET("/public-key", s.pushPublicKey)
	r.POST("/subscribe", s.subscribe)
	r.POST("/unsubscribe", s.unsubscribe)
}
