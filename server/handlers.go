package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hibiki-voice/hibiki/api"
	"github.com/hibiki-voice/hibiki/hvm"
	"github.com/hibiki-voice/hibiki/registry"
	"github.com/hibiki-voice/hibiki/types/styleid"
)

// handleRegistryError maps registry failures onto HTTP statuses: 404 for
// lookups, 422 for packages or requests the server understands but cannot
// act on, 400 for refused operations, 500 for everything environmental.
func handleRegistryError(c *gin.Context, err error) {
	var formatErr *hvm.FormatError
	switch {
	case errors.Is(err, registry.ErrModelNotFound),
		errors.Is(err, registry.ErrSpeakerNotFound),
		errors.Is(err, registry.ErrStyleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrLastModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &formatErr),
		errors.Is(err, registry.ErrUnsupportedVersion),
		errors.Is(err, registry.ErrUnsupportedArchitecture),
		errors.Is(err, registry.ErrNoUpdateAvailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ListHandler handles GET /api/models. refresh=true forces a directory
// rescan and wait=true additionally blocks on the catalog update check.
func (s *Server) ListHandler(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	entries := s.registry.Entries(c.Request.Context(), refresh, wait)

	models := []api.ModelResponse{}
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		models = append(models, pair.Value.Response())
	}

	c.JSON(http.StatusOK, api.ListResponse{Models: models})
}

// ShowHandler handles GET /api/models/:model.
func (s *Server) ShowHandler(c *gin.Context) {
	entry, err := s.registry.Get(c.Request.Context(), c.Param("model"))
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.Response())
}

// InstallHandler handles POST /api/models/install. The request body is the
// raw package file.
func (s *Server) InstallHandler(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	}

	entry, err := s.registry.Install(c.Request.Context(), data)
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.Response())
}

// PullHandler handles POST /api/models/pull, installing a package from a
// direct URL or a hub model page URL.
func (s *Server) PullHandler(c *gin.Context) {
	var req api.PullRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("unsupported url %q", req.URL)})
		return
	}

	entry, err := s.registry.InstallFromURL(c.Request.Context(), req.URL)
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.Response())
}

// UpdateHandler handles POST /api/models/:model/update.
func (s *Server) UpdateHandler(c *gin.Context) {
	entry, err := s.registry.Update(c.Request.Context(), c.Param("model"))
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.Response())
}

// DeleteHandler handles DELETE /api/models/:model.
func (s *Server) DeleteHandler(c *gin.Context) {
	if err := s.registry.Uninstall(c.Request.Context(), c.Param("model")); err != nil {
		handleRegistryError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// LoadStateHandler handles POST /api/models/:model/load-state, the
// synthesis runtime's report of whether the model occupies memory.
func (s *Server) LoadStateHandler(c *gin.Context) {
	var req api.LoadStateRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.registry.Get(c.Request.Context(), c.Param("model"))
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	entry.SetLoaded(req.Loaded)
	c.Status(http.StatusNoContent)
}

// SpeakersHandler handles GET /api/speakers.
func (s *Server) SpeakersHandler(c *gin.Context) {
	speakers := s.registry.Speakers(c.Request.Context())
	if speakers == nil {
		speakers = []api.Speaker{}
	}

	c.JSON(http.StatusOK, speakers)
}

// SpeakerInfoHandler handles GET /api/speakers/:speaker/info.
func (s *Server) SpeakerInfoHandler(c *gin.Context) {
	info, err := s.registry.SpeakerInfo(c.Request.Context(), c.Param("speaker"))
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// StyleHandler handles GET /api/styles/:id, resolving a global style id
// back to its model, speaker, and style.
func (s *Server) StyleHandler(c *gin.Context) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("invalid style id %q", c.Param("id"))})
		return
	}

	ref, err := s.registry.Style(c.Request.Context(), styleid.ID(n))
	if err != nil {
		handleRegistryError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.StyleResponse{
		ID:      ref.Style.ID,
		Model:   ref.Entry.Manifest.UUID,
		Speaker: ref.Speaker,
		Style:   ref.Style,
	})
}
