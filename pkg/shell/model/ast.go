package model

// Command is one parsed simple command invocation. A pipe redirect chains
// commands together: the standard output of this command feeds the command
// referenced by Pipe.
type Command struct {
	// Name is the command name, the first word of the invocation.
	Name string
	// Args are the arguments following the name.
	Args []string
	// Env holds the leading NAME=value bindings. Keys are unique.
	Env map[string]string
	// Pipe is the downstream command, nil when output goes to the terminal.
	Pipe *Command
}
