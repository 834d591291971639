package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"entity-graph/backend/internal/api"
	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store"
)

// LinkingHandler handles linking operation HTTP requests
type LinkingHandler struct {
	executor *linking.Executor
}

// NewLinkingHandler creates a new linking handler
func NewLinkingHandler(executor *linking.Executor) *LinkingHandler {
	return &LinkingHandler{executor: executor}
}

// LinkItemsRequest represents the request body for linking two data items
// @Description Request body for linking two data items without changing ownership
type LinkItemsRequest struct {
	ItemA  string `json:"item_a" binding:"required,uuid"`
	ItemB  string `json:"item_b" binding:"required,uuid"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason" binding:"required"`
} // @name LinkItemsRequest

// CreateRelationshipRequest represents the request body for a relationship
// @Description Request body for creating a typed relationship between entities
type CreateRelationshipRequest struct {
	FromID           string   `json:"from_id" binding:"required,uuid"`
	ToID             string   `json:"to_id" binding:"required,uuid"`
	RelationshipType string   `json:"relationship_type" binding:"required"`
	Actor            string   `json:"actor" binding:"required"`
	Reason           string   `json:"reason" binding:"required"`
	Confidence       *float64 `json:"confidence,omitempty"`
} // @name CreateRelationshipRequest

// LinkOrphanRequest represents the request body for resolving an orphan
// @Description Request body for linking an orphan data group to an entity
type LinkOrphanRequest struct {
	EntityID string `json:"entity_id" binding:"required,uuid"`
	Actor    string `json:"actor" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
} // @name LinkOrphanRequest

// DismissSuggestionRequest represents the request body for a dismissal
// @Description Request body for durably dismissing a duplicate suggestion
type DismissSuggestionRequest struct {
	EntityID string `json:"entity_id" binding:"required,uuid"`
	TargetID string `json:"target_id" binding:"required,uuid"`
	Actor    string `json:"actor" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
} // @name DismissSuggestionRequest

// LinkDataItems links two data items
// @Summary Link data items
// @Description Create a reversible symmetric link between two data items
// @Tags linking
// @Accept json
// @Produce json
// @Param request body LinkItemsRequest true "Link request"
// @Success 201 {object} api.APIResponse{data=model.LinkingAction}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /links/items [post]
func (h *LinkingHandler) LinkDataItems(c *gin.Context) {
	var req LinkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	itemA, itemB, ok := parseUUIDPair(c, req.ItemA, req.ItemB, "item")
	if !ok {
		return
	}

	action, err := h.executor.LinkDataItems(c.Request.Context(), linking.LinkItemsRequest{
		ItemA:  itemA,
		ItemB:  itemB,
		Actor:  req.Actor,
		Reason: req.Reason,
	})
	if err != nil {
		respondServiceError(c, "Data item", err)
		return
	}

	api.SendSuccess(c, http.StatusCreated, action)
}

// CreateRelationship creates a typed relationship between two entities
// @Summary Create relationship
// @Description Relate two entities without merging them; symmetric types get an inverse edge
// @Tags linking
// @Accept json
// @Produce json
// @Param request body CreateRelationshipRequest true "Relationship request"
// @Success 201 {object} api.APIResponse{data=model.LinkingAction}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /relationships [post]
func (h *LinkingHandler) CreateRelationship(c *gin.Context) {
	var req CreateRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	fromID, toID, ok := parseUUIDPair(c, req.FromID, req.ToID, "entity")
	if !ok {
		return
	}

	action, err := h.executor.CreateRelationshipFromMatch(c.Request.Context(), linking.RelationshipRequest{
		FromID:           fromID,
		ToID:             toID,
		RelationshipType: req.RelationshipType,
		Actor:            req.Actor,
		Reason:           req.Reason,
		Confidence:       req.Confidence,
	})
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusCreated, action)
}

// LinkOrphan resolves an orphan data group into an entity
// @Summary Link orphan to entity
// @Description Move every data item from the orphan group to the entity and mark it resolved
// @Tags linking
// @Accept json
// @Produce json
// @Param id path string true "Orphan ID"
// @Param request body LinkOrphanRequest true "Orphan link request"
// @Success 200 {object} api.APIResponse{data=model.LinkingAction}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Failure 404 {object} api.APIResponse{error=api.APIError}
// @Router /orphans/{id}/link [post]
func (h *LinkingHandler) LinkOrphan(c *gin.Context) {
	orphanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.SendValidationError(c, "Invalid orphan ID", err.Error())
		return
	}

	var req LinkOrphanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		api.SendValidationError(c, "Invalid entity ID", err.Error())
		return
	}

	action, err := h.executor.LinkOrphanToEntity(c.Request.Context(), linking.OrphanRequest{
		OrphanID: orphanID,
		EntityID: entityID,
		Actor:    req.Actor,
		Reason:   req.Reason,
	})
	if err != nil {
		respondServiceError(c, "Orphan", err)
		return
	}

	api.SendSuccess(c, http.StatusOK, action)
}

// DismissSuggestion durably dismisses a duplicate suggestion
// @Summary Dismiss suggestion
// @Description Record that a suggested duplicate pair should not be offered again
// @Tags linking
// @Accept json
// @Produce json
// @Param request body DismissSuggestionRequest true "Dismissal request"
// @Success 200 {object} api.APIResponse{data=model.LinkingAction}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Router /suggestions/dismiss [post]
func (h *LinkingHandler) DismissSuggestion(c *gin.Context) {
	var req DismissSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	entityID, targetID, ok := parseUUIDPair(c, req.EntityID, req.TargetID, "entity")
	if !ok {
		return
	}

	action, err := h.executor.DismissSuggestion(c.Request.Context(), linking.DismissRequest{
		EntityID: entityID,
		TargetID: targetID,
		Actor:    req.Actor,
		Reason:   req.Reason,
	})
	if err != nil {
		respondServiceError(c, "Entity", err)
		return
	}

	api.SendSuccess(c, http.StatusOK, action)
}

// GetLinkingHistory returns the audit trail of linking operations
// @Summary Get linking history
// @Description List linking actions, optionally filtered by entity or action type
// @Tags linking
// @Produce json
// @Param entity_id query string false "Filter by referenced entity ID"
// @Param action_type query string false "Filter by action type"
// @Param limit query int false "Maximum records" default(50)
// @Success 200 {object} api.APIResponse{data=[]model.LinkingAction}
// @Failure 400 {object} api.APIResponse{error=api.APIError}
// @Router /history [get]
func (h *LinkingHandler) GetLinkingHistory(c *gin.Context) {
	var filter store.AuditFilter

	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.SendValidationError(c, "Invalid entity ID", err.Error())
			return
		}
		filter.EntityID = &id
	}
	if raw := c.Query("action_type"); raw != "" {
		t := model.ActionType(raw)
		filter.ActionType = &t
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	filter.Limit = limit

	actions, err := h.executor.GetLinkingHistory(c.Request.Context(), filter)
	if err != nil {
		api.SendInternalError(c, err.Error())
		return
	}

	api.SendSuccess(c, http.StatusOK, actions)
}

func parseUUIDPair(c *gin.Context, rawA, rawB, label string) (uuid.UUID, uuid.UUID, bool) {
	a, err := uuid.Parse(rawA)
	if err != nil {
		api.SendValidationError(c, "Invalid "+label+" ID", err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	b, err := uuid.Parse(rawB)
	if err != nil {
		api.SendValidationError(c, "Invalid "+label+" ID", err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return a, b, true
}
