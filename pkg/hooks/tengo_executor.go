package hooks

import (
	"fmt"
	"sort"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/glorpus-work/gopill/pkg/errors"
)

// TengoExecutor handles the execution of Tengo scripts.
type TengoExecutor struct {
	modules *tengo.ModuleMap
}

// NewTengoExecutor creates a new Tengo script executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		modules: stdlib.GetModuleMap("fmt", "os", "text", "times", "json"),
	}
}

// Execute runs one hook script with the given context.
func (e *TengoExecutor) Execute(hook Hook, ctx HookContext) error {
	script := tengo.NewScript([]byte(hook.Content))
	script.SetImports(e.modules)

	files := make([]interface{}, 0, len(ctx.Files))
	for _, f := range ctx.Files {
		files = append(files, f)
	}
	counts := make(map[string]interface{}, len(ctx.Counts))
	for k, v := range ctx.Counts {
		counts[k] = v
	}

	vars := []struct {
		name  string
		value interface{}
	}{
		{"hookType", string(hook.Type)},
		{"mode", ctx.Mode},
		{"outputDir", ctx.OutputDir},
		{"files", files},
		{"counts", counts},
		{"err", ""},
	}
	for _, v := range vars {
		if err := script.Add(v.name, v.value); err != nil {
			return fmt.Errorf("failed to add %s to script: %w", v.name, err)
		}
	}

	// Add custom variables in a stable order
	names := make([]string, 0, len(ctx.Vars))
	for k := range ctx.Vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := script.Add(k, ctx.Vars[k]); err != nil {
			return fmt.Errorf("failed to add variable '%s' to script: %w", k, err)
		}
	}

	compiled, err := script.Run()
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrHookExecution, err)
	}

	// Check for any returned error
	switch v := compiled.Get("err").Object().(type) {
	case *tengo.Error:
		msg, _ := tengo.ToString(v.Value)
		return fmt.Errorf("%w: %s", errors.ErrHookScript, msg)
	case *tengo.String:
		if v.Value != "" {
			return fmt.Errorf("%w: %s", errors.ErrHookScript, v.Value)
		}
	}
	return nil
}
