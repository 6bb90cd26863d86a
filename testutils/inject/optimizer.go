// Package inject provides fakes whose behavior is set per test through function fields.
package inject

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/urdfcapsule/optimizer"
)

// Optimizer is an injected capsule optimizer that also counts and records its calls.
type Optimizer struct {
	optimizer.Optimizer
	FitFunc func(ctx context.Context, meshPath string, scale r3.Vector) (*optimizer.Result, error)

	mu    sync.Mutex
	calls []FitCall
}

// FitCall records the arguments of one Fit call.
type FitCall struct {
	MeshPath string
	Scale    r3.Vector
}

// Fit calls the injected Fit or the real version.
func (o *Optimizer) Fit(ctx context.Context, meshPath string, scale r3.Vector) (*optimizer.Result, error) {
	o.mu.Lock()
	o.calls = append(o.calls, FitCall{MeshPath: meshPath, Scale: scale})
	o.mu.Unlock()
	if o.FitFunc == nil {
		return o.Optimizer.Fit(ctx, meshPath, scale)
	}
	return o.FitFunc(ctx, meshPath, scale)
}

// Calls returns every Fit call made so far.
func (o *Optimizer) Calls() []FitCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]FitCall(nil), o.calls...)
}

// NewFixedOptimizer returns an optimizer that always fits the given capsule.
func NewFixedOptimizer(ep1, ep2 r3.Vector, radius float64) *Optimizer {
	return &Optimizer{
		FitFunc: func(ctx context.Context, meshPath string, scale r3.Vector) (*optimizer.Result, error) {
			return &optimizer.Result{Endpoint1: ep1, Endpoint2: ep2, Radius: radius}, nil
		},
	}
}
