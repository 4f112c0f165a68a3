package wdlscope

// InputVisible reports whether the hidden Input type may resolve for the
// named task/workflow: only when an inputs section exists for it.
func (d *DocumentScope) InputVisible(taskOrWorkflowName string) bool {
	if t, ok := d.Tasks[taskOrWorkflowName]; ok {
		return t.inputs != nil
	}
	if d.Workflow != nil && d.Workflow.name == taskOrWorkflowName {
		return d.Workflow.inputs != nil
	}
	return false
}

// OutputVisible reports whether the hidden Output type may resolve for the
// named task/workflow: only when an outputs section exists for it.
func (d *DocumentScope) OutputVisible(taskOrWorkflowName string) bool {
	if t, ok := d.Tasks[taskOrWorkflowName]; ok {
		return t.outputs != nil
	}
	if d.Workflow != nil && d.Workflow.name == taskOrWorkflowName {
		return d.Workflow.outputs != nil
	}
	return false
}

// TaskIdentifierVisible reports whether the `task` identifier is resolvable
// for the named task: only inside command/output sections, version-gated,
// as recorded at RegisterTask time.
func (d *DocumentScope) TaskIdentifierVisible(taskName string) bool {
	t, ok := d.Tasks[taskName]
	return ok && t.supportsTask
}

// OutputScope returns the outputs sub-scope of a task or workflow, if any.
func (d *DocumentScope) OutputScope(name string) (ScopeRef, bool) {
	if t, ok := d.Tasks[name]; ok && t.outputs != nil {
		return d.Ref(*t.outputs), true
	}
	if d.Workflow != nil && d.Workflow.name == name && d.Workflow.outputs != nil {
		return d.Ref(*d.Workflow.outputs), true
	}
	return ScopeRef{}, false
}

// InputScope returns the inputs sub-scope of a task or workflow, if any.
func (d *DocumentScope) InputScope(name string) (ScopeRef, bool) {
	if t, ok := d.Tasks[name]; ok && t.inputs != nil {
		return d.Ref(*t.inputs), true
	}
	if d.Workflow != nil && d.Workflow.name == name && d.Workflow.inputs != nil {
		return d.Ref(*d.Workflow.inputs), true
	}
	return ScopeRef{}, false
}
