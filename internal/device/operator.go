package device

// Executor is an opaque, operator-owned handle produced by a size query and
// consumed by exactly one Execute.
type Executor any

// Operator is the two-phase kernel ABI.
//
// GetWorkspaceSize inspects the descriptors and reports how much scratch
// memory Execute needs together with an executor carrying the prepared
// launch. Execute queues the launch on stream; results are only guaranteed
// visible after the runtime is synchronized.
type Operator interface {
	Name() string
	GetWorkspaceSize(inputs, outputs []*Tensor) (uint64, Executor, Status)
	Execute(workspace Ptr, size uint64, exec Executor, stream Stream) Status
}

// OperatorFuncs adapts a pair of functions to Operator.
type OperatorFuncs struct {
	OpName string
	Query  func(inputs, outputs []*Tensor) (uint64, Executor, Status)
	Exec   func(workspace Ptr, size uint64, exec Executor, stream Stream) Status
}

// Name returns OpName.
func (o OperatorFuncs) Name() string { return o.OpName }

// GetWorkspaceSize calls Query.
func (o OperatorFuncs) GetWorkspaceSize(inputs, outputs []*Tensor) (uint64, Executor, Status) {
	return o.Query(inputs, outputs)
}

// Execute calls Exec.
func (o OperatorFuncs) Execute(workspace Ptr, size uint64, exec Executor, stream Stream) Status {
	return o.Exec(workspace, size, exec, stream)
}
