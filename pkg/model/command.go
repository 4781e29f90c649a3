package model

import "fmt"

// CommandType qualifies the change carried by a Command
type CommandType uint8

// Command types
const (
	// Unknown command types are rejected by validators
	Unknown CommandType = iota
	Create
	Update
	UpdateNonFastForward
	Delete
)

func (t CommandType) String() string {
	switch t {
	case Create:
		return "CREATE"
	case Update:
		return "UPDATE"
	case UpdateNonFastForward:
		return "UPDATE_NONFASTFORWARD"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Command is one ref update submitted as part of a batch.
//
// Result is set by whoever applies the batch.
type Command struct {
	RefName string
	OldID   ObjectID
	NewID   ObjectID
	Type    CommandType
	Result  Result
	Message string
}

// NewCommand builds a command, inferring its type from the old and new ids
func NewCommand(refName string, oldID, newID ObjectID) *Command {
	c := &Command{
		RefName: refName,
		OldID:   oldID,
		NewID:   newID,
	}
	switch {
	case oldID.IsZero() && newID.IsZero():
		c.Type = Unknown
	case oldID.IsZero():
		c.Type = Create
	case newID.IsZero():
		c.Type = Delete
	default:
		c.Type = Update
	}
	return c
}

// SetResult records the outcome of this command
func (c *Command) SetResult(r Result) {
	c.Result = r
}

func (c *Command) String() string {
	return fmt.Sprintf("%s %s %s..%s [%s]", c.Type, c.RefName, c.OldID.Abbrev(), c.NewID.Abbrev(), c.Result)
}

// AllSuccessful tells if every command in a batch has a successful outcome
func AllSuccessful(commands []*Command) bool {
	for _, c := range commands {
		if !c.Result.IsSuccessful() {
			return false
		}
	}
	return true
}

// SetAllResults forces the outcome of every command in a batch
func SetAllResults(commands []*Command, r Result) {
	for _, c := range commands {
		c.SetResult(r)
	}
}
