// Package hooks runs user-supplied tengo scripts before and after each
// download. Scripts see the variables mode, outputDir, files, counts and
// hookType, and signal failure by assigning a message to err.
package hooks

import (
	"fmt"
	"os"
	"sync"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
)

// ErrHookTypeEmpty is returned when a hook type is empty.
var ErrHookTypeEmpty = fmt.Errorf("hook type cannot be empty")

// DefaultHookManager is the default implementation of HookManager.
type DefaultHookManager struct {
	executor *TengoExecutor
	hooks    map[HookType][]Hook
	mutex    sync.RWMutex
}

// NewHookManager creates a new hook manager.
func NewHookManager() *DefaultHookManager {
	return &DefaultHookManager{
		executor: NewTengoExecutor(),
		hooks:    make(map[HookType][]Hook),
	}
}

// Load creates a manager from script paths. Unreadable scripts are an error.
func Load(pre, post []string) (*DefaultHookManager, error) {
	m := NewHookManager()
	for hookType, paths := range map[HookType][]string{PreDownload: pre, PostDownload: post} {
		for _, path := range paths {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", errors.ErrHookLoad, path, err)
			}
			if err := m.AddHook(Hook{Type: hookType, Path: path, Content: string(content)}); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Execute runs the hooks of hookType with the given context.
func (m *DefaultHookManager) Execute(hookType HookType, ctx HookContext) error {
	m.mutex.RLock()
	hooks := append([]Hook(nil), m.hooks[hookType]...)
	m.mutex.RUnlock()

	// Copy the context to prevent modifications
	ctxCopy := ctx
	if ctxCopy.Vars == nil {
		ctxCopy.Vars = make(map[string]interface{})
	}

	for _, hook := range hooks {
		logger.Debug("Running hook", logger.Fields{"type": string(hookType), "path": hook.Path})
		if err := m.executor.Execute(hook, ctxCopy); err != nil {
			return errors.Wrapf(err, "%s hook %s", hookType, hook.Path)
		}
	}
	return nil
}

// AddHook adds a new hook after the existing ones of its type.
func (m *DefaultHookManager) AddHook(hook Hook) error {
	if hook.Type == "" {
		return ErrHookTypeEmpty
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.hooks[hook.Type] = append(m.hooks[hook.Type], hook)
	return nil
}

// HasHook checks if a hook of the specified type exists.
func (m *DefaultHookManager) HasHook(hookType HookType) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.hooks[hookType]) > 0
}
