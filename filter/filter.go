// Package filter selects events with CEL expressions such as
//
//	round >= 10 && creator == 3 && tx_count > 0
//
// A filter only decides which events are shown. Callers still fold every
// event into the running hash.
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/xmh1011/go-pces/param"
)

// Filter is a compiled expression. The zero value and the filter compiled
// from an empty expression match every event. Safe for concurrent use.
type Filter struct {
	expr string
	prog cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("creator", cel.IntType),
		cel.Variable("generation", cel.IntType),
		cel.Variable("self_parent_gen", cel.IntType),
		cel.Variable("other_parent_gen", cel.IntType),
		cel.Variable("time_created", cel.TimestampType),
		cel.Variable("tx_count", cel.IntType),
		cel.Variable("version", cel.StringType),
		cel.Variable("round", cel.IntType),
		cel.Variable("round_created", cel.IntType),
		cel.Variable("order", cel.IntType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("stale", cel.BoolType),
		cel.Variable("last_in_round", cel.BoolType),
		cel.Variable("has_consensus", cel.BoolType),
	)
}

// Compile parses and type-checks expr, which must evaluate to a bool.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("invalid filter %q: result is %s, want bool", expr, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Enabled reports whether the filter can reject events.
func (f *Filter) Enabled() bool {
	return f != nil && f.prog != nil
}

// Match evaluates the filter against ev.
func (f *Filter) Match(ev *param.PersistedEvent) (bool, error) {
	if !f.Enabled() {
		return true, nil
	}
	out, _, err := f.prog.Eval(activation(ev))
	if err != nil {
		return false, fmt.Errorf("evaluate filter on %s: %w", ev, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T", out.Value())
	}
	return b, nil
}

func activation(ev *param.PersistedEvent) map[string]any {
	return map[string]any{
		"creator":          ev.Hashed.CreatorID,
		"generation":       ev.Hashed.Generation(),
		"self_parent_gen":  ev.Hashed.SelfParentGen,
		"other_parent_gen": ev.Hashed.OtherParentGen,
		"time_created":     ev.Hashed.TimeCreated,
		"tx_count":         int64(ev.TransactionCount()),
		"version":          ev.Hashed.SoftwareVersion,
		"round":            ev.Consensus.RoundReceived,
		"round_created":    ev.Consensus.RoundCreated,
		"order":            ev.Consensus.ConsensusOrder,
		"timestamp":        ev.Consensus.ConsensusTimestamp,
		"stale":            ev.Consensus.Stale,
		"last_in_round":    ev.Consensus.LastInRoundReceived,
		"has_consensus":    ev.HasConsensus(),
	}
}
