package registry

import "fmt"

// DuplicateIDError reports two definitions of the same kind sharing an
// identifier. Fatal at load time.
type DuplicateIDError struct {
	Kind Kind
	ID   string
	Path string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %q (second definition at %s)", e.Kind, e.ID, e.Path)
}

// CommandNotFoundError reports an unknown command identifier.
type CommandNotFoundError struct {
	ID string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command %q not found", e.ID)
}

// AgentNotFoundError reports an unknown agent identifier, either a command's
// target, a fan-out entry, or a caller override.
type AgentNotFoundError struct {
	ID string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found", e.ID)
}
