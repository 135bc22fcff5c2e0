package routes

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/filestore"
	"csv-share-access/internal/notify"
	"csv-share-access/internal/storage"

	"github.com/gin-gonic/gin"
)

type fileResponse struct {
	storage.StoredFile
	Current bool `json:"current"`
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) listFiles(c *gin.Context) {
	ctx := c.Request.Context()
	files, err := s.Files.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	current, err := s.Files.Current(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, fileResponse{StoredFile: f, Current: current != nil && current.ID == f.ID})
	}
	c.JSON(http.StatusOK, gin.H{"files": out})
}

// uploadFile accepts a multipart "file" field with an optional "message"
// shown to viewers and an "activate" flag.
func (s *Server) uploadFile(c *gin.Context) {
	ctx := c.Request.Context()

	header, err := c.FormFile("file")
	if err != nil {
		AbortWithHTTPError(c, http.StatusBadRequest, err, "No file uploaded", "NO_FILE")
		return
	}
	if err := dataset.CheckSize(header.Size); err != nil {
		AbortWithError(c, err)
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	payload, err := io.ReadAll(io.LimitReader(f, dataset.MAX_SIZE_BYTES+1))
	if err != nil {
		fail(c, err)
		return
	}
	if err := dataset.CheckSize(int64(len(payload))); err != nil {
		AbortWithError(c, err)
		return
	}

	table, err := dataset.Parse(payload)
	if err != nil {
		if errors.Is(err, dataset.ErrNoHeaders) {
			AbortWithError(c, err)
			return
		}
		AbortWithHTTPError(c, http.StatusBadRequest, err, "The file is not a valid CSV.", "INVALID_CSV")
		return
	}

	message := c.PostForm("message")
	file, err := s.Files.Store(ctx, filestore.Upload{
		Filename:      header.Filename,
		Payload:       payload,
		Schema:        dataset.InferSchema(table),
		RowCount:      len(table.Rows),
		UpdateMessage: message,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if activate, _ := strconv.ParseBool(c.PostForm("activate")); activate {
		if err := s.Files.SetCurrent(ctx, file.ID); err != nil {
			fail(c, err)
			return
		}
	}

	s.audit(c, audit.ActionFileUploaded, audit.Details{
		"file_id":  file.ID,
		"filename": file.Filename,
		"rows":     file.RowCount,
	})
	if message != "" {
		s.Notifier.NotifyLinkSubscribers(notifyCtx(c), "", notify.Notification{
			Title: "Data updated",
			Body:  message,
		})
	}

	slog.Info("CSV uploaded", "file_id", file.ID, "rows", file.RowCount)
	c.JSON(http.StatusCreated, gin.H{"file": file})
}

func (s *Server) activateFile(c *gin.Context) {
	id := c.Param("id")
	if err := s.Files.SetCurrent(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionFileActivated, audit.Details{"file_id": id})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) updateFileMessage(c *gin.Context) {
	var req messageRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	if err := s.Files.UpdateMessage(c.Request.Context(), id, req.Message); err != nil {
		fail(c, err)
		return
	}
	if req.Message != "" {
		s.Notifier.NotifyLinkSubscribers(notifyCtx(c), "", notify.Notification{
			Title: "Data updated",
			Body:  req.Message,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteFile(c *gin.Context) {
	id := c.Param("id")
	if err := s.Files.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionFileDeleted, audit.Details{"file_id": id})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
