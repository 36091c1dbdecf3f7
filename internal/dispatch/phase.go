package dispatch

import "github.com/born-ml/lowbit/internal/errs"

// Phase is a state of one dispatch.
type Phase int

// Dispatch states in the order a successful call visits them. Failed can
// follow any of them.
const (
	ShapeResolved Phase = iota
	SizeQueried
	WorkspaceAcquired
	Executed
	Synchronized
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case ShapeResolved:
		return "shape_resolved"
	case SizeQueried:
		return "size_queried"
	case WorkspaceAcquired:
		return "workspace_acquired"
	case Executed:
		return "executed"
	case Synchronized:
		return "synchronized"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// errPhase is the error phase of a failure while moving into p.
func (p Phase) errPhase() errs.Phase {
	switch p {
	case ShapeResolved:
		return errs.PhaseShape
	case SizeQueried:
		return errs.PhaseSizeQuery
	case WorkspaceAcquired:
		return errs.PhaseWorkspace
	case Executed:
		return errs.PhaseExecute
	default:
		return errs.PhaseSynchronize
	}
}

// errKind is the error kind of a device status failure while moving into p.
func (p Phase) errKind() errs.Kind {
	switch p {
	case SizeQueried:
		return errs.KindOperatorQueryFailure
	case WorkspaceAcquired:
		return errs.KindAllocationFailure
	case Executed:
		return errs.KindOperatorExecutionFailure
	default:
		return errs.KindSynchronizationFailure
	}
}
