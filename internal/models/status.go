package models

import (
	"fmt"
	"strings"
)

// BlockStatus is the matching state of a block. Services move a block
// between statuses only through the transition methods below.
type BlockStatus string

const (
	BlockStatusDraft    BlockStatus = "DRAFT"     // editable, unmatched
	BlockStatusPending  BlockStatus = "PENDING"   // created by generate, awaiting match
	BlockStatusMatched  BlockStatus = "MATCHED"   // has at least one candidate
	BlockStatusNoResult BlockStatus = "NO_RESULT" // matched nothing or has no keywords
	BlockStatusCustom   BlockStatus = "CUSTOM"    // user picked the primary asset
)

var blockStatuses = []BlockStatus{
	BlockStatusDraft,
	BlockStatusPending,
	BlockStatusMatched,
	BlockStatusNoResult,
	BlockStatusCustom,
}

func (s BlockStatus) Valid() bool {
	for _, v := range blockStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseBlockStatus(s string) (BlockStatus, error) {
	status := BlockStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown block status %q", s)
	}
	return status, nil
}

// Scan rejects unknown statuses coming back from the database.
func (s *BlockStatus) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported block status source %T", value)
	}
	parsed, err := ParseBlockStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StatusForInsert is the status of a block inserted by hand or created by a split.
func StatusForInsert() BlockStatus {
	return BlockStatusDraft
}

// StatusForGenerated is the status of a block created by a generate run.
func StatusForGenerated(keywords []string) BlockStatus {
	if len(keywords) == 0 {
		return BlockStatusNoResult
	}
	return BlockStatusPending
}

func (b *Block) HasKeywords() bool {
	return len(b.Keywords) > 0
}

// Invalidate resets a block whose text or keywords changed. Callers must
// also drop the block's candidate links in the same unit of work.
func (b *Block) Invalidate() {
	b.Status = BlockStatusDraft
}

// ApplyMatch records the outcome of a clear-existing match run.
func (b *Block) ApplyMatch(found bool) {
	if found {
		b.Status = BlockStatusMatched
		return
	}
	b.Status = BlockStatusNoResult
}

// ApplyAdditiveMatch records an additive search. A user-chosen primary
// survives it, so CUSTOM is kept.
func (b *Block) ApplyAdditiveMatch(hasCandidates bool) {
	if b.Status == BlockStatusCustom && hasCandidates {
		return
	}
	b.ApplyMatch(hasCandidates)
}

// ChoosePrimary records a user primary selection.
func (b *Block) ChoosePrimary() {
	b.Status = BlockStatusCustom
}
