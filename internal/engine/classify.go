package engine

// ExitClass is the outcome category of a finished worker process.
type ExitClass int

const (
	ExitOK ExitClass = iota
	// ExitStackOverrun is the status torch reports when an allocation fails
	// deep in native code.
	ExitStackOverrun
	ExitAccessViolation
	ExitOutOfMemory
	ExitKilled
	ExitFailure
)

func (c ExitClass) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitStackOverrun:
		return "stack_overrun"
	case ExitAccessViolation:
		return "access_violation"
	case ExitOutOfMemory:
		return "out_of_memory"
	case ExitKilled:
		return "killed"
	default:
		return "failure"
	}
}

const (
	statusStackBufferOverrun uint32 = 0xC0000409
	statusAccessViolation    uint32 = 0xC0000005
	statusNoMemory           uint32 = 0xC0000017
	exitSIGKILL              uint32 = 128 + 9
)

// ClassifyExit maps a process exit code to its class. Status codes may arrive
// signed (-1073740791) or unsigned (3221226505); both map the same way.
func ClassifyExit(code int64, signaled bool) ExitClass {
	if signaled {
		return ExitKilled
	}
	switch uint32(code) {
	case 0:
		return ExitOK
	case statusStackBufferOverrun:
		return ExitStackOverrun
	case statusAccessViolation:
		return ExitAccessViolation
	case statusNoMemory:
		return ExitOutOfMemory
	case exitSIGKILL:
		return ExitKilled
	default:
		return ExitFailure
	}
}
