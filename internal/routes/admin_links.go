package routes

import (
	"encoding/json"
	"net/http"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/config"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/links"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
	"csv-share-access/internal/validate"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

// criteriaInput accepts either a JSON array of criteria or a string holding
// one, as sent by form posts.
type criteriaInput []dataset.Criterion

func (ci *criteriaInput) UnmarshalJSON(b []byte) error {
	var encoded string
	if err := json.Unmarshal(b, &encoded); err == nil {
		if encoded == "" {
			encoded = "[]"
		}
		b = []byte(encoded)
	}
	var criteria []dataset.Criterion
	if err := json.Unmarshal(b, &criteria); err != nil {
		return err
	}
	*ci = criteria
	return nil
}

type createLinkRequest struct {
	Name            string        `json:"name"`
	Password        string        `json:"password"`
	Criteria        criteriaInput `json:"criteria"`
	ShowSerial      bool          `json:"showSerial"`
	HideFirstColumn bool          `json:"hideFirstColumn"`
}

type updateLinkRequest struct {
	Name            *string `json:"name"`
	Active          *bool   `json:"active"`
	ShowSerial      *bool   `json:"showSerial"`
	HideFirstColumn *bool   `json:"hideFirstColumn"`
}

type linkResponse struct {
	storage.AccessLink
	URL string `json:"url"`
}

func (s *Server) linkResponse(c *gin.Context, link storage.AccessLink) linkResponse {
	return linkResponse{
		AccessLink: link,
		URL:        utils.UrlFor(c, s.Config.BaseURL, utils.ViewerPath(link.ID)),
	}
}

func (s *Server) listLinks(c *gin.Context) {
	all, err := s.Links.ListLinks(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]linkResponse, 0, len(all))
	for _, link := range all {
		out = append(out, s.linkResponse(c, link))
	}
	c.JSON(http.StatusOK, gin.H{"links": out})
}

func (s *Server) createLink(c *gin.Context) {
	var req createLinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validate.LinkName(req.Name); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := validate.LinkPassword(req.Password); err != nil {
		AbortWithError(c, err)
		return
	}

	link, err := s.Links.CreateLink(c.Request.Context(), links.NewLink{
		Name:     req.Name,
		Password: req.Password,
		Criteria: req.Criteria,
		DisplayOptions: dataset.DisplayOptions{
			ShowSerial:      req.ShowSerial,
			HideFirstColumn: req.HideFirstColumn,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}

	s.audit(c, audit.ActionLinkCreated, audit.Details{"link_id": link.ID, "name": link.Name})
	c.JSON(http.StatusCreated, gin.H{"link": s.linkResponse(c, *link)})
}

func (s *Server) updateLink(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req updateLinkRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := s.Links.GetLink(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	changes := audit.Details{"link_id": id}
	if req.Name != nil {
		if err := validate.LinkName(*req.Name); err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.Links.Rename(ctx, id, *req.Name); err != nil {
			fail(c, err)
			return
		}
		changes["name"] = *req.Name
	}
	if req.Active != nil {
		if err := s.Links.SetActive(ctx, id, *req.Active); err != nil {
			fail(c, err)
			return
		}
		changes["active"] = *req.Active
	}
	if req.ShowSerial != nil || req.HideFirstColumn != nil {
		opts := link.DisplayOptions.V
		if req.ShowSerial != nil {
			opts.ShowSerial = *req.ShowSerial
		}
		if req.HideFirstColumn != nil {
			opts.HideFirstColumn = *req.HideFirstColumn
		}
		if err := s.Links.UpdateOptions(ctx, id, opts); err != nil {
			fail(c, err)
			return
		}
		changes["display_options"] = opts
	}

	updated, err := s.Links.GetLink(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionLinkUpdated, changes)
	c.JSON(http.StatusOK, gin.H{"link": s.linkResponse(c, *updated)})
}

func (s *Server) deleteLink(c *gin.Context) {
	id := c.Param("id")
	if err := s.Links.DeleteLink(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionLinkDeleted, audit.Details{"link_id": id})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// linkQR renders the public link URL as a PNG QR code.
func (s *Server) linkQR(c *gin.Context) {
	link, err := s.Links.GetLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	url := utils.UrlFor(c, s.Config.BaseURL, utils.ViewerPath(link.ID))
	png, err := qrcode.Encode(url, qrcode.Medium, config.QR_IMAGE_SIZE)
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, err, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
