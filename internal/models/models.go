package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums
type ChosenBy string

const (
	ChosenByAuto ChosenBy = "AUTO"
	ChosenByUser ChosenBy = "USER"
)

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
)

type JobType string

const (
	JobTypeMatch    JobType = "match"
	JobTypeGenerate JobType = "generate"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// ToJSONB round-trips v through JSON so struct results can be stored in a JSONB column.
func ToJSONB(v any) (JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode unmarshals the document into v.
func (j JSONB) Decode(v any) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Models

type User struct {
	ID           uuid.UUID `json:"id"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Project struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	ScriptRaw string    `json:"script_raw"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Block struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	Order     float64     `json:"order"`
	Text      string      `json:"text"`
	Keywords  []string    `json:"keywords"`
	Status    BlockStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Asset is a stock media item, shared across blocks and keyed by SourceURL.
type Asset struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	AssetType    AssetType `json:"asset_type"`
	SourceURL    string    `json:"source_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Title        *string   `json:"title,omitempty"`
	License      *string   `json:"license,omitempty"`
	Meta         JSONB     `json:"meta,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type BlockAsset struct {
	ID        uuid.UUID `json:"id"`
	BlockID   uuid.UUID `json:"block_id"`
	AssetID   uuid.UUID `json:"asset_id"`
	Score     float64   `json:"score"`
	IsPrimary bool      `json:"is_primary"`
	ChosenBy  ChosenBy  `json:"chosen_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Asset     *Asset    `json:"asset,omitempty"` // Populated on reads
}

// Candidate is a media search hit before it is persisted as an Asset.
type Candidate struct {
	Provider       string    `json:"provider"`
	AssetType      AssetType `json:"asset_type"`
	SourceURL      string    `json:"source_url"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	Title          string    `json:"title,omitempty"`
	License        string    `json:"license,omitempty"`
	Meta           JSONB     `json:"meta,omitempty"`
	Score          float64   `json:"score"`
	MatchedKeyword string    `json:"matched_keyword,omitempty"`
}

// ToAsset builds the Asset row for a candidate.
func (c Candidate) ToAsset() *Asset {
	a := &Asset{
		ID:           uuid.New(),
		Provider:     c.Provider,
		AssetType:    c.AssetType,
		SourceURL:    c.SourceURL,
		ThumbnailURL: c.ThumbnailURL,
		Meta:         c.Meta,
	}
	if c.Title != "" {
		title := c.Title
		a.Title = &title
	}
	if c.License != "" {
		license := c.License
		a.License = &license
	}
	return a
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Type         JobType    `json:"type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	Payload      JSONB      `json:"payload,omitempty"`
	Result       JSONB      `json:"result,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DTOs for API responses

type BlockWithPrimary struct {
	Block
	PrimaryAsset *Asset `json:"primary_asset"`
}

type ProjectDetail struct {
	Project
	Blocks []BlockWithPrimary `json:"blocks"`
}

type ListProjectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

type SplitResult struct {
	BlocksCount int     `json:"blocks_count"`
	Blocks      []Block `json:"blocks"`
}

// BlockOutcome records what a match run did to one block.
type BlockOutcome struct {
	BlockID    uuid.UUID   `json:"block_id"`
	Status     BlockStatus `json:"status"`
	Candidates int         `json:"candidates"`
	Error      string      `json:"error,omitempty"`
}

type MatchResult struct {
	BlocksCount  int            `json:"blocks_count"`
	MatchedCount int            `json:"matched_count"`
	Outcomes     []BlockOutcome `json:"outcomes"`
}

type GenerateResult struct {
	MatchResult
	Blocks []Block `json:"blocks"`
}

type SearchMoreResult struct {
	Block Block        `json:"block"`
	Added []BlockAsset `json:"added"`
}

// Requests

type CreateProjectRequest struct {
	Title  *string `json:"title,omitempty"` // Default: first 50 characters of the script
	Script string  `json:"script"`
}

type UpdateProjectRequest struct {
	Title  *string `json:"title,omitempty"`
	Script *string `json:"script,omitempty"`
}

type CreateBlockRequest struct {
	Text         string     `json:"text"`
	Keywords     []string   `json:"keywords"`
	Order        *float64   `json:"order,omitempty"`          // Explicit order key
	AfterBlockID *uuid.UUID `json:"after_block_id,omitempty"` // Insert right after this block
	AtStart      bool       `json:"at_start,omitempty"`       // Insert before the first block
}

type UpdateBlockRequest struct {
	Text     *string   `json:"text,omitempty"`
	Keywords *[]string `json:"keywords,omitempty"`
}

type SplitBlockRequest struct {
	Position int `json:"position"` // Character offset, counted in code points
}

type MergeBlocksRequest struct {
	BlockIDs []uuid.UUID `json:"block_ids"`
}

type SetPrimaryRequest struct {
	AssetID uuid.UUID `json:"asset_id"`
}

type SplitProjectRequest struct {
	MaxKeywords *int `json:"max_keywords,omitempty"` // 1..10
}

type MatchProjectRequest struct {
	MaxCandidates *int  `json:"max_candidates,omitempty"`
	VideoPriority *bool `json:"video_priority,omitempty"` // Default: true
	Async         bool  `json:"async,omitempty"`
}

type GenerateProjectRequest struct {
	MaxKeywords   *int  `json:"max_keywords,omitempty"`
	MaxCandidates *int  `json:"max_candidates,omitempty"`
	VideoPriority *bool `json:"video_priority,omitempty"`
	Async         bool  `json:"async,omitempty"`
}

type SearchMoreRequest struct {
	Keyword       string `json:"keyword"`
	Count         *int   `json:"count,omitempty"`
	VideoPriority *bool  `json:"video_priority,omitempty"`
}

// Auth

type RegisterRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type CheckNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type CheckNicknameResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // Seconds
}

type SplitBlockResult struct {
	First  Block `json:"first"`
	Second Block `json:"second"`
}
