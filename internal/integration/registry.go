// Package integration provides the uniform dispatch table for external
// tool invocations (CRM, ticketing, knowledge base). The core never embeds
// integration-specific logic, only dispatch and result folding.
package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/supportstack/conversation-core/pkg/metrics"
)

// ErrUnknownTool is returned when no invoker is registered for a tool name.
var ErrUnknownTool = errors.New("unknown tool")

// Failure is a typed integration failure. When the failed action has no
// automated fallback, the policy escalates.
type Failure struct {
	Tool string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("integration %q failed: %v", f.Tool, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the structured outcome of an invocation. Slots are folded back
// into the conversation; Facts ground the generated reply.
type Result struct {
	Slots map[string]string
	Facts map[string]string
}

// Invoker executes one named tool.
type Invoker interface {
	Invoke(ctx context.Context, args map[string]string) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, args map[string]string) (*Result, error)

// Invoke calls the function.
func (f InvokerFunc) Invoke(ctx context.Context, args map[string]string) (*Result, error) {
	return f(ctx, args)
}

// Registry maps tool names to invokers. It is assembled at startup and
// read-only afterwards.
type Registry struct {
	invokers map[string]Invoker
	timeout  time.Duration
}

// NewRegistry creates a registry with a per-invocation timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		invokers: make(map[string]Invoker),
		timeout:  timeout,
	}
}

// Register adds an invoker under a tool name. Not safe for concurrent use;
// call during startup only.
func (r *Registry) Register(tool string, inv Invoker) {
	r.invokers[tool] = inv
}

// RegisterFunc adds a function invoker under a tool name.
func (r *Registry) RegisterFunc(tool string, fn InvokerFunc) {
	r.Register(tool, fn)
}

// Invoke dispatches a tool by name. Every failure comes back as *Failure so
// the policy can fold it into the escalation decision.
func (r *Registry) Invoke(ctx context.Context, tool string, args map[string]string) (*Result, error) {
	inv, ok := r.invokers[tool]
	if !ok {
		metrics.IntegrationInvocations.WithLabelValues(tool, "unknown").Inc()
		return nil, &Failure{Tool: tool, Err: ErrUnknownTool}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := inv.Invoke(ctx, args)
	if err != nil {
		metrics.IntegrationInvocations.WithLabelValues(tool, "failure").Inc()
		return nil, &Failure{Tool: tool, Err: err}
	}

	metrics.IntegrationInvocations.WithLabelValues(tool, "success").Inc()
	if res == nil {
		res = &Result{}
	}
	return res, nil
}
