package tools

// ToolSpec represents the static specification of a tool (name, description, parameters).
// This is used for LLM schema generation and does not require any runtime dependencies.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// Registry is an ordered set of tool specs offered to the model in one
// session. The executor refuses calls to tools outside the registry.
type Registry struct {
	order []string
	specs map[string]ToolSpec
}

// NewRegistry creates a registry holding specs in the given order.
func NewRegistry(specs ...ToolSpec) *Registry {
	r := &Registry{specs: make(map[string]ToolSpec, len(specs))}
	for _, spec := range specs {
		r.Register(spec)
	}
	return r
}

// Register adds spec, replacing an earlier spec of the same name in place.
func (r *Registry) Register(spec ToolSpec) {
	if _, exists := r.specs[spec.Name()]; !exists {
		r.order = append(r.order, spec.Name())
	}
	r.specs[spec.Name()] = spec
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ToJSONSchema renders the registry in the OpenAI function tool format.
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	schemas := make([]map[string]interface{}, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        spec.Name(),
				"description": spec.Description(),
				"parameters":  spec.Parameters(),
			},
		})
	}
	return schemas
}

// NewDocumentRegistry returns the full editing tool set used by the planned
// tool loop.
func NewDocumentRegistry() *Registry {
	return NewRegistry(
		&WriteFullFileToolSpec{},
		&StrReplaceToolSpec{},
		&AskClarificationToolSpec{},
		&WebSearchToolSpec{},
		&FinishToolSpec{},
	)
}

// NewPatchRegistry returns the patch-only tool set of the simple editor.
func NewPatchRegistry() *Registry {
	return NewRegistry(
		&StrReplaceToolSpec{Simple: true},
		&FinishToolSpec{Simple: true},
	)
}

// NewCreateRegistry returns the single forced write tool used to generate a
// page from scratch.
func NewCreateRegistry() *Registry {
	return NewRegistry(&WriteFullFileToolSpec{Simple: true})
}
