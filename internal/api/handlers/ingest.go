package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"entity-graph/backend/internal/api"
	"entity-graph/backend/internal/ingest"
	"entity-graph/backend/internal/model"
)

// IngestHandler handles entity and data item creation requests
type IngestHandler struct {
	ingestService *ingest.Service
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestService *ingest.Service) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// CreateEntityRequest represents the request body for creating an entity
// @Description Request body for creating an empty entity
type CreateEntityRequest struct {
	Type string `json:"type" binding:"required"`
} // @name CreateEntityRequest

// AddItemRequest represents the request body for attaching a data item
// @Description Request body for admitting one raw value into the graph
type AddItemRequest struct {
	Type       string `json:"type" binding:"required"`
	RawValue   string `json:"raw_value,omitempty"`
	ContentRef string `json:"content_ref,omitempty"`
	Source     string `json:"source,omitempty"`
} // @name AddItemRequest

// CreateOrphanRequest represents the request body for creating an orphan group
// @Description Request body for admitting values with no known entity owner
type CreateOrphanRequest struct {
	Items []AddItemRequest `json:"items" binding:"required,min=1"`
} // @name CreateOrphanRequest

// OrphanResponse bundles the created orphan with its data items
type OrphanResponse struct {
	Orphan *model.OrphanData `json:"orphan"`
	Items  []model.DataItem  `json:"items"`
}

// CreateEntity creates a new entity
// @Summary Create entity
// @Description Create an empty entity of the given type
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body CreateEntityRequest true "Entity request"
// @Success 201 {object} api.APIResponse{data=model.Entity}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Router /entities [post]
func (h *IngestHandler) CreateEntity(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	entity, err := h.ingestService.CreateEntity(c.Request.Context(), model.EntityType(req.Type))
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusCreated, entity)
}

// AddItem attaches a normalized data item to an entity
// @Summary Add data item
// @Description Normalize, hash and attach one raw value to an entity
// @Tags ingest
// @Accept json
// @Produce json
// @Param id path string true "Entity ID"
// @Param request body AddItemRequest true "Item request"
// @Success 201 {object} api.APIResponse{data=model.DataItem}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /entities/{id}/items [post]
func (h *IngestHandler) AddItem(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.SendValidationError(c, "Invalid entity ID", err.Error())
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	item, err := h.ingestService.AddItem(c.Request.Context(), model.EntityOwner(entityID), ingest.ItemInput{
		Type:       model.SemanticType(req.Type),
		RawValue:   req.RawValue,
		ContentRef: req.ContentRef,
		Source:     req.Source,
	})
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusCreated, item)
}

// CreateOrphan admits values with no known owner
// @Summary Create orphan group
// @Description Admit raw values whose entity is not yet known
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body CreateOrphanRequest true "Orphan request"
// @Success 201 {object} api.APIResponse{data=OrphanResponse}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Router /orphans [post]
func (h *IngestHandler) CreateOrphan(c *gin.Context) {
	var req CreateOrphanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	inputs := make([]ingest.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, ingest.ItemInput{
			Type:       model.SemanticType(it.Type),
			RawValue:   it.RawValue,
			ContentRef: it.ContentRef,
			Source:     it.Source,
		})
	}

	orphan, items, err := h.ingestService.CreateOrphan(c.Request.Context(), inputs)
	if err != nil {
		respondServiceError(c, "Orphan", err)
		return
	}

	api.SendSuccess(c, http.StatusCreated, OrphanResponse{Orphan: orphan, Items: items})
}
