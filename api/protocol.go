package api

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/IDGHIM/TaskFlow/domain"
)

const postCommandMaxSize = 64 * 1024 // 64 KiB

var errUnknownCommand = errors.New("unknown command type")

// wireCommand is one element of the POST /api/commands body.
type wireCommand struct {
	IdempotencyKey string                 `json:"idempotencyKey"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
}

type commandData struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Priority string `json:"priority"`
	DueDate  string `json:"dueDate"`
	Category string `json:"category"`
	Confirm  bool   `json:"confirm"`
}

// toDomain maps a wire command onto its domain command. A nil command with a
// nil error means the request is valid but must not be applied, as for a
// remove that was not confirmed.
func (w wireCommand) toDomain() (domain.Command, error) {
	var d commandData
	if len(w.Data) > 0 {
		if err := sonic.Unmarshal(w.Data, &d); err != nil {
			return nil, fmt.Errorf("%s: invalid data: %w", w.Type, err)
		}
	}

	switch domain.CommandType(w.Type) {
	case domain.CmdAdd:
		// Unknown values fall back to defaults inside the domain.
		prio, _ := domain.ParsePriority(d.Priority)
		cat, _ := domain.ParseCategory(d.Category)
		return domain.AddTask{Text: d.Text, Priority: prio, DueDate: d.DueDate, Category: cat}, nil
	case domain.CmdToggle:
		return domain.ToggleTask{ID: d.ID}, nil
	case domain.CmdRemove:
		if !d.Confirm {
			return nil, nil
		}
		return domain.RemoveTask{ID: d.ID}, nil
	case domain.CmdUpdateText:
		return domain.UpdateTaskText{ID: d.ID, Text: d.Text}, nil
	case domain.CmdEditStart:
		return domain.StartEdit{ID: d.ID}, nil
	case domain.CmdEditChange:
		return domain.ChangeDraft{Text: d.Text}, nil
	case domain.CmdEditCommit:
		return domain.CommitEdit{}, nil
	case domain.CmdEditCancel:
		return domain.CancelEdit{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, w.Type)
	}
}

type commandResult struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Type           string `json:"type"`
	Applied        bool   `json:"applied"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// /POST /api/commands response body
type postCommandResponse struct {
	IdempotencyKeys []string        `json:"idempotencyKeys,omitempty"`
	Results         []commandResult `json:"results,omitempty"`
	Counts          *domain.Counts  `json:"counts,omitempty"`
	Error           string          `json:"error,omitempty"`
}
