package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"entity-graph/backend/internal/api"
	"entity-graph/backend/internal/dedup"
	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/model"
)

// DedupHandler handles duplicate detection and merge HTTP requests
type DedupHandler struct {
	dedupService *dedup.Service
}

// NewDedupHandler creates a new dedup handler
func NewDedupHandler(dedupService *dedup.Service) *DedupHandler {
	return &DedupHandler{dedupService: dedupService}
}

// requestUser resolves the acting user for dismissal scoping.
func requestUser(c *gin.Context) string {
	if u := c.GetHeader("X-User-ID"); u != "" {
		return u
	}
	return "default"
}

// PreviewMergeRequest represents the request body for previewing a merge
// @Description Request body for previewing an entity merge
type PreviewMergeRequest struct {
	PrimaryID    string              `json:"primary_id" binding:"required,uuid"`
	DuplicateIDs []string            `json:"duplicate_ids" binding:"required,min=1"`
	Strategy     string              `json:"strategy" binding:"required"`
	Resolutions  map[string][]string `json:"resolutions,omitempty"`
} // @name PreviewMergeRequest

// MergeEntitiesRequest represents the request body for executing a merge
// @Description Request body for merging duplicate entities into a primary
type MergeEntitiesRequest struct {
	PreviewMergeRequest
	Actor      string   `json:"actor" binding:"required"`
	Reason     string   `json:"reason" binding:"required"`
	Confidence *float64 `json:"confidence,omitempty"`
} // @name MergeEntitiesRequest

// FindDuplicates returns ranked duplicate candidates for an entity
// @Summary Find duplicate candidates
// @Description Scan the graph for entities that likely duplicate the given one
// @Tags dedup
// @Produce json
// @Param id path string true "Entity ID"
// @Success 200 {object} api.APIResponse{data=[]model.DuplicateCandidate}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /entities/{id}/duplicates [get]
func (h *DedupHandler) FindDuplicates(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.SendValidationError(c, "Invalid entity ID", err.Error())
		return
	}

	candidates, err := h.dedupService.FindDuplicates(c.Request.Context(), requestUser(c), id)
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusOK, candidates)
}

// PreviewMerge computes the merged profile without mutating anything
// @Summary Preview an entity merge
// @Description Show the merged profile, conflicts and discarded values for a strategy
// @Tags dedup
// @Accept json
// @Produce json
// @Param request body PreviewMergeRequest true "Preview request"
// @Success 200 {object} api.APIResponse{data=dedup.MergePreview}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /merge/preview [post]
func (h *DedupHandler) PreviewMerge(c *gin.Context) {
	var req PreviewMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	primaryID, duplicateIDs, strategy, ok := h.parseMergeFields(c, req)
	if !ok {
		return
	}

	preview, err := h.dedupService.PreviewMerge(c.Request.Context(), primaryID, duplicateIDs, strategy, req.Resolutions)
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusOK, preview)
}

// MergeEntities merges duplicates into a primary entity
// @Summary Merge entities
// @Description Move data items and relationships to the primary, tombstone duplicates
// @Tags dedup
// @Accept json
// @Produce json
// @Param request body MergeEntitiesRequest true "Merge request"
// @Success 200 {object} api.APIResponse{data=linking.MergeResult}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Failure 409 {object} api.APIResponse{error=api.APIError}
// @Router /merge [post]
func (h *DedupHandler) MergeEntities(c *gin.Context) {
	var req MergeEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	primaryID, duplicateIDs, strategy, ok := h.parseMergeFields(c, req.PreviewMergeRequest)
	if !ok {
		return
	}

	result, err := h.dedupService.MergeEntities(c.Request.Context(), dedup.MergeRequest{
		PrimaryID:    primaryID,
		DuplicateIDs: duplicateIDs,
		Strategy:     strategy,
		Resolutions:  req.Resolutions,
		Actor:        req.Actor,
		Reason:       req.Reason,
		Confidence:   req.Confidence,
	})
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusOK, result)
}

func (h *DedupHandler) parseMergeFields(c *gin.Context, req PreviewMergeRequest) (uuid.UUID, []uuid.UUID, model.MergeStrategy, bool) {
	primaryID, err := uuid.Parse(req.PrimaryID)
	if err != nil {
		api.SendValidationError(c, "Invalid primary ID", err.Error())
		return uuid.Nil, nil, 0, false
	}

	duplicateIDs := make([]uuid.UUID, 0, len(req.DuplicateIDs))
	for _, raw := range req.DuplicateIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.SendValidationError(c, "Invalid duplicate ID", err.Error())
			return uuid.Nil, nil, 0, false
		}
		duplicateIDs = append(duplicateIDs, id)
	}

	strategy, err := model.ParseMergeStrategy(req.Strategy)
	if err != nil {
		api.SendValidationError(c, "Invalid merge strategy", err.Error())
		return uuid.Nil, nil, 0, false
	}

	return primaryID, duplicateIDs, strategy, true
}

// respondServiceError maps core errors onto HTTP error responses.
func respondServiceError(c *gin.Context, resource string, err error) {
	switch {
	case dedup.IsNotFound(err):
		api.SendNotFound(c, resource)
	case linking.IsValidation(err):
		api.SendValidationError(c, err.Error(), "")
	default:
		api.SendInternalError(c, err.Error())
	}
}
