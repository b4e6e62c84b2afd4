// Package report holds the append-only audit trail.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// Action classifies what the audited mutation did.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionRemove Action = "remove"
)

// IsValid checks if the action is known.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRemove:
		return true
	default:
		return false
	}
}

const (
	maxTitleLength   = 200
	maxContentLength = 20000
)

// Report is one audit entry. It is never mutated or deleted.
type Report struct {
	ID        string
	Title     string
	Content   string
	ActorID   string
	ActorIP   string
	CourseID  string // optional
	Action    Action
	CreatedAt time.Time
}

// Params holds the fields shared by both report kinds.
type Params struct {
	Title    string
	Content  string
	ActorID  string
	ActorIP  string
	CourseID string
	Action   Action
}

func (p Params) validate(op string) error {
	switch {
	case strings.TrimSpace(p.Title) == "" || len(p.Title) > maxTitleLength:
		return shared.InvalidField("report", op, "title")
	case strings.TrimSpace(p.Content) == "" || len(p.Content) > maxContentLength:
		return shared.InvalidField("report", op, "content")
	case p.ActorID == "":
		return shared.InvalidField("report", op, "actor")
	case !p.Action.IsValid():
		return shared.InvalidField("report", op, "action")
	}
	return nil
}

// New validates and builds a report.
func New(p Params) (*Report, error) {
	if err := p.validate("New"); err != nil {
		return nil, err
	}
	return &Report{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(p.Title),
		Content:   p.Content,
		ActorID:   p.ActorID,
		ActorIP:   p.ActorIP,
		CourseID:  p.CourseID,
		Action:    p.Action,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Batch is the consolidated audit entry for one bulk operation.
type Batch struct {
	Report
	File shared.SourceFile
}

// NewBatch validates and builds a batch report.
func NewBatch(p Params, file shared.SourceFile) (*Batch, error) {
	if err := p.validate("NewBatch"); err != nil {
		return nil, err
	}
	r, _ := New(p)
	return &Batch{Report: *r, File: file}, nil
}

// Repository stores reports. It only appends.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	CreateBatch(ctx context.Context, b *Batch) error
	FindMany(ctx context.Context, opts shared.ListOptions) ([]*Report, error)
	FindManyBatches(ctx context.Context, opts shared.ListOptions) ([]*Batch, error)
}
