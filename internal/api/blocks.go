package api

import (
	"net/http"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

// ListBlocks handles GET /v1/projects/{id}/blocks
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.ownedProjectID(w, r)
	if !ok {
		return
	}

	list, err := h.blocks.List(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateBlock handles POST /v1/projects/{id}/blocks
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.ownedProjectID(w, r)
	if !ok {
		return
	}
	var req models.CreateBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	block, err := h.blocks.Create(r.Context(), projectID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, block)
}

// MergeBlocks handles POST /v1/projects/{id}/blocks/merge
func (h *Handler) MergeBlocks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.ownedProjectID(w, r)
	if !ok {
		return
	}
	var req models.MergeBlocksRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	block, err := h.blocks.Merge(r.Context(), projectID, req.BlockIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

// GetBlock handles GET /v1/blocks/{id}
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}

	block, err := h.blocks.Get(r.Context(), blockID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

// UpdateBlock handles PUT /v1/blocks/{id}
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}
	var req models.UpdateBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	block, err := h.blocks.Update(r.Context(), blockID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

// DeleteBlock handles DELETE /v1/blocks/{id}
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}

	if err := h.blocks.Delete(r.Context(), blockID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SplitBlock handles POST /v1/blocks/{id}/split
func (h *Handler) SplitBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}
	var req models.SplitBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	first, second, err := h.blocks.Split(r.Context(), blockID, req.Position)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.SplitBlockResult{First: *first, Second: *second})
}

// ListBlockAssets handles GET /v1/blocks/{id}/assets
func (h *Handler) ListBlockAssets(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}

	links, err := h.blocks.ListAssets(r.Context(), blockID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, links)
}

// SetPrimaryAsset handles POST /v1/blocks/{id}/primary
func (h *Handler) SetPrimaryAsset(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.ownedBlockID(w, r)
	if !ok {
		return
	}
	var req models.SetPrimaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.blocks.SetPrimaryAsset(r.Context(), blockID, req.AssetID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

// MatchBlock handles POST /v1/blocks/{id}/match
func (h *Handler) MatchBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	blockID, ok := pathID(w, r, "block")
	if !ok {
		return
	}
	var req models.MatchProjectRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	outcome, err := h.workflow.MatchBlock(r.Context(), userID, blockID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// SearchMore handles POST /v1/blocks/{id}/search-more
func (h *Handler) SearchMore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	blockID, ok := pathID(w, r, "block")
	if !ok {
		return
	}
	var req models.SearchMoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.workflow.SearchMore(r.Context(), userID, blockID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ownedProjectID parses {id} and checks that the caller owns the project.
func (h *Handler) ownedProjectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return uuid.Nil, false
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return uuid.Nil, false
	}
	if err := h.workflow.AuthorizeProject(r.Context(), userID, projectID); err != nil {
		h.fail(w, r, err)
		return uuid.Nil, false
	}
	return projectID, true
}

// ownedBlockID parses {id} and checks that the caller owns the block.
func (h *Handler) ownedBlockID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return uuid.Nil, false
	}
	blockID, ok := pathID(w, r, "block")
	if !ok {
		return uuid.Nil, false
	}
	if err := h.workflow.AuthorizeBlock(r.Context(), userID, blockID); err != nil {
		h.fail(w, r, err)
		return uuid.Nil, false
	}
	return blockID, true
}
