package agent

// ExceptionReaction is the policy an agent, its cooperation, or the
// environment applies when a handler, on_start, on_finish, or a
// state-change listener throws. ReactionInherit defers to the owning
// cooperation's policy, and a cooperation's own ReactionInherit defers
// to the environment's default — resolved at the moment of the
// exception, not cached, so changing a cooperation's policy takes effect
// for every agent that still inherits it.
type ExceptionReaction int

const (
	// ReactionInherit defers to the cooperation, then the environment.
	ReactionInherit ExceptionReaction = iota
	// ReactionAbortProcess terminates the process with a fatal log.
	ReactionAbortProcess
	// ReactionShutdownEnvironment initiates orderly shutdown of the
	// whole environment.
	ReactionShutdownEnvironment
	// ReactionDeregisterCoop begins deregistration of the handler's
	// owning cooperation with reason "unhandled_exception".
	ReactionDeregisterCoop
	// ReactionIgnore swallows the exception and continues.
	ReactionIgnore
)

func (r ExceptionReaction) String() string {
	switch r {
	case ReactionAbortProcess:
		return "abort_process"
	case ReactionShutdownEnvironment:
		return "shutdown_environment"
	case ReactionDeregisterCoop:
		return "deregister_coop"
	case ReactionIgnore:
		return "ignore"
	default:
		return "inherit"
	}
}
