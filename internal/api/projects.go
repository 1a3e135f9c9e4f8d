package api

import (
	"net/http"
	"strconv"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/models"
)

// CreateProject handles POST /v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.workflow.CreateProject(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /v1/projects
// Query params:
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset := 0, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			respondError(w, http.StatusBadRequest, apperr.CodeValidationFailed, "Invalid limit")
			return
		}
		limit = parsed
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil {
			respondError(w, http.StatusBadRequest, apperr.CodeValidationFailed, "Invalid offset")
			return
		}
		offset = parsed
	}

	resp, err := h.workflow.ListProjects(r.Context(), userID, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetProject handles GET /v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}

	detail, err := h.workflow.Detail(r.Context(), userID, projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// UpdateProject handles PATCH /v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	var req models.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.workflow.UpdateProject(r.Context(), userID, projectID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}

	if err := h.workflow.DeleteProject(r.Context(), userID, projectID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SplitProject handles POST /v1/projects/{id}/split
func (h *Handler) SplitProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	var req models.SplitProjectRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	result, err := h.workflow.Split(r.Context(), userID, projectID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// MatchProject handles POST /v1/projects/{id}/match. With "async": true the
// run is queued and the job is returned with 202.
func (h *Handler) MatchProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	var req models.MatchProjectRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	if req.Async {
		job, err := h.workflow.SubmitMatch(r.Context(), userID, projectID, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := h.workflow.Match(r.Context(), userID, projectID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GenerateProject handles POST /v1/projects/{id}/generate
func (h *Handler) GenerateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	var req models.GenerateProjectRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	if req.Async {
		job, err := h.workflow.SubmitGenerate(r.Context(), userID, projectID, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := h.workflow.Generate(r.Context(), userID, projectID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ReindexProject handles POST /v1/projects/{id}/reindex
func (h *Handler) ReindexProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	if err := h.workflow.AuthorizeProject(r.Context(), userID, projectID); err != nil {
		h.fail(w, r, err)
		return
	}

	list, err := h.blocks.Reindex(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetProjectJobs handles GET /v1/projects/{id}/jobs
func (h *Handler) GetProjectJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}

	jobs, err := h.workflow.ProjectJobs(r.Context(), userID, projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	jobID, ok := pathID(w, r, "job")
	if !ok {
		return
	}

	job, err := h.workflow.GetJob(r.Context(), userID, jobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
