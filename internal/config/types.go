package config

import "github.com/nodeflow/jobflow/pkg/rules"

// Config is the compiled, immutable-after-load workflow definition
// (spec §3's "Workflow"). Steps is positional order; Rules is already
// validated and ready to evaluate. The only field any component may
// mutate post-load is a Step's NNodes, via grow/shrink — everything
// else is read-only for the lifetime of the process.
type Config struct {
	Scheduler         string
	Prefix            string
	MaxSize           int
	CompletionsNeeded int
	Steps             []Step
	Rules             *rules.Engine
	Filesystem        string
	Registry          *Registry
	Workdir           string
}

// StepNames returns the ordered step names, the shape
// pkg/statemachine.New needs.
func (c *Config) StepNames() []string {
	names := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		names[i] = s.Name
	}
	return names
}

// StepByName returns a pointer into c.Steps so callers (grow/shrink)
// can mutate NNodes in place, and whether it exists.
func (c *Config) StepByName(name string) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Name == name {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// Step is one workflow stage's static definition plus its currently
// effective node count, the one field grow/shrink mutate.
type Step struct {
	Name         string
	Image        string
	NNodes       int
	CoresPerTask int
	NGPUs        int
	Walltime     string
	Command      string
	Script       string
	Environment  map[string]string
	Properties   map[string]interface{}
	Registry     *Registry
}

// Registry is a container-image registry override. A Step's Registry
// is its own block or, when the step has none, the workflow-level
// block; it is nil when neither is configured.
type Registry struct {
	Host      string
	PlainHTTP bool
	Push      string
	Pull      string
}
