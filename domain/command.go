package domain

// CommandType names a command on the wire and in logs.
type CommandType string

const (
	CmdAdd        CommandType = "add"
	CmdToggle     CommandType = "toggle"
	CmdRemove     CommandType = "remove"
	CmdUpdateText CommandType = "update-text"
	CmdEditStart  CommandType = "edit-start"
	CmdEditChange CommandType = "edit-change"
	CmdEditCommit CommandType = "edit-commit"
	CmdEditCancel CommandType = "edit-cancel"
)

// Command is a request to change a task list. The set of implementations is
// closed to this package.
type Command interface {
	Type() CommandType
	command()
}

// AddTask creates a task at the front of the list.
type AddTask struct {
	Text     string
	Priority Priority
	DueDate  string
	Category Category
}

// ToggleTask flips the completion flag of a task.
type ToggleTask struct{ ID int64 }

// RemoveTask deletes a task.
type RemoveTask struct{ ID int64 }

// UpdateTaskText replaces the text of a task.
type UpdateTaskText struct {
	ID   int64
	Text string
}

// StartEdit opens an edit session on a task.
type StartEdit struct{ ID int64 }

// ChangeDraft replaces the draft of the open edit session.
type ChangeDraft struct{ Text string }

// CommitEdit writes the draft to the task and closes the session.
type CommitEdit struct{}

// CancelEdit closes the session without touching the task.
type CancelEdit struct{}

func (AddTask) Type() CommandType        { return CmdAdd }
func (ToggleTask) Type() CommandType     { return CmdToggle }
func (RemoveTask) Type() CommandType     { return CmdRemove }
func (UpdateTaskText) Type() CommandType { return CmdUpdateText }
func (StartEdit) Type() CommandType      { return CmdEditStart }
func (ChangeDraft) Type() CommandType    { return CmdEditChange }
func (CommitEdit) Type() CommandType     { return CmdEditCommit }
func (CancelEdit) Type() CommandType     { return CmdEditCancel }

func (AddTask) command()        {}
func (ToggleTask) command()     {}
func (RemoveTask) command()     {}
func (UpdateTaskText) command() {}
func (StartEdit) command()      {}
func (ChangeDraft) command()    {}
func (CommitEdit) command()     {}
func (CancelEdit) command()     {}
