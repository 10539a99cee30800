// Package policy evaluates row-level access rules written in CEL.
//
// Rules see two variables: `auth` (null for anonymous callers, otherwise a
// map with `uid` and `token.email`) and `row` (the row being read, written or
// deleted). Anything a rule does not explicitly allow is denied.
package policy

import (
	"fmt"
	"sync"

	"linkvault/internal/emulator/domain/model"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Operation is the access kind a rule guards.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpDelete Operation = "delete"
)

// AuthContext identifies the caller during evaluation. A nil AuthContext
// means the request carried no valid token.
type AuthContext struct {
	UserID string
	Email  string
}

// Engine compiles rules once at registration and evaluates the cached
// programs on every request.
type Engine struct {
	celEnv *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEngine creates an engine with the rule evaluation environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("auth", decls.Dyn), // null or map; rules must guard against null
			decls.NewVar("row", decls.Dyn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		celEnv:   env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Register compiles and caches the rules guarding one table. Registering a
// table again replaces its rules.
func (e *Engine) Register(table string, rules map[Operation]string) error {
	compiled := make(map[string]cel.Program, len(rules))
	for op, expression := range rules {
		program, err := e.compile(expression)
		if err != nil {
			return fmt.Errorf("rule %s/%s: %w", table, op, err)
		}
		compiled[ruleKey(table, op)] = program
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, program := range compiled {
		e.programs[key] = program
	}
	return nil
}

// Allowed evaluates the rule for one operation against one row. Operations
// with no registered rule are denied.
func (e *Engine) Allowed(table string, op Operation, auth *AuthContext, row *model.Bookmark) (bool, error) {
	e.mu.RLock()
	program, exists := e.programs[ruleKey(table, op)]
	e.mu.RUnlock()
	if !exists {
		return false, nil
	}

	vars := map[string]interface{}{
		"auth": authVars(auth),
		"row":  rowVars(row),
	}

	out, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("rule evaluation error: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule for %s/%s did not return a boolean", table, op)
	}
	return allowed, nil
}

func (e *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := e.celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}

	program, err := e.celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return program, nil
}

func ruleKey(table string, op Operation) string {
	return table + "/" + string(op)
}

func authVars(auth *AuthContext) interface{} {
	if auth == nil {
		return nil
	}
	vars := map[string]interface{}{
		"uid": auth.UserID,
	}
	if auth.Email != "" {
		vars["token"] = map[string]interface{}{
			"email": auth.Email,
		}
	}
	return vars
}

func rowVars(row *model.Bookmark) interface{} {
	if row == nil {
		return nil
	}
	return map[string]interface{}{
		"id":       row.ID,
		"owner_id": row.OwnerID,
		"title":    row.Title,
		"url":      row.URL,
	}
}
