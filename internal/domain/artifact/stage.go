package artifact

// Stage is a step of a single install invocation.
// The sequence is Resolving, Fetching, Verifying, Installing, SelfChecking, Done;
// any stage may end in Failed. No stage is re-entered.
type Stage int

// Install stages in execution order.
const (
	StageResolving Stage = iota
	StageFetching
	StageVerifying
	StageInstalling
	StageSelfChecking
	StageDone
	StageFailed
)

// String returns the lower-case stage name used in logs and messages.
func (s Stage) String() string {
	switch s {
	case StageResolving:
		return "resolving"
	case StageFetching:
		return "fetching"
	case StageVerifying:
		return "verifying"
	case StageInstalling:
		return "installing"
	case StageSelfChecking:
		return "self-checking"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Next returns the stage that follows s on the success path.
// Done and Failed are terminal and return themselves.
func (s Stage) Next() Stage {
	switch s {
	case StageResolving, StageFetching, StageVerifying, StageInstalling, StageSelfChecking:
		return s + 1
	default:
		return s
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}
