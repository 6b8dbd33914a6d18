package task

// Handle is the write capability for one task. Only the registry creates
// handles; a zero or forged handle is rejected with ErrNotOwner.
type Handle struct {
	reg   *Registry
	id    string
	token string
}

// ID returns the task identifier.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Report publishes a progress message. Repeating the latest message is a no-op.
func (h *Handle) Report(message string) error {
	if h == nil || h.reg == nil {
		return ErrNotOwner
	}
	return h.reg.Report(h.id, h.token, message)
}

// Succeed completes the task with the result message and output path.
func (h *Handle) Succeed(message, path string) error {
	if h == nil || h.reg == nil {
		return ErrNotOwner
	}
	return h.reg.Complete(h.id, h.token, StateSuccess, Result{Message: message, Path: path})
}

// Fail completes the task with a failure.
func (h *Handle) Fail(kind Kind, message string) error {
	if h == nil || h.reg == nil {
		return ErrNotOwner
	}
	if kind == "" {
		kind = KindInternal
	}
	return h.reg.Complete(h.id, h.token, StateFailure, Result{Error: message, Kind: kind})
}
