package api

import (
	"context"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
	"github.com/nerrad567/rpihome-core/internal/journal"
)

type journalInput struct {
	optionalKey
	Limit  *int    `json:"limit,omitempty"`
	Action *string `json:"action,omitempty"`
	Entity *string `json:"entity,omitempty"`
}

type journalOutput = journal.ListResult

func (s *Server) handleJournal(ctx context.Context, _ *dispatch.Request, in journalInput) (*journalOutput, error) {
	var f journal.Filter
	if in.Limit != nil {
		f.Limit = *in.Limit
	}
	if in.Action != nil {
		f.Action = *in.Action
	}
	if in.Entity != nil {
		f.Entity = *in.Entity
	}
	return s.journal.List(ctx, f)
}
