package permission

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"

	"github.com/mpapenbr/racesim-engine/log"
)

// Request describes a message that arrived on the race channel.
type Request struct {
	Kind   string `json:"kind"`
	Sender string `json:"sender"`
	// Subject is the player the payload speaks for (intent, ready) or the convener named
	// in a snapshot.
	Subject  string   `json:"subject,omitempty"`
	Convener string   `json:"convener"`
	Players  []string `json:"players,omitempty"`
}

type Evaluator interface {
	Allowed(ctx context.Context, req Request) bool
}

type OpaEvaluator struct {
	r     *rego.Rego
	query rego.PreparedEvalQuery
	l     *log.Logger
}

// check interface compliance
var _ Evaluator = (*OpaEvaluator)(nil)

//go:embed policy.rego
var policy []byte

//go:embed data.json
var data []byte

func NewOpaEvaluator() (*OpaEvaluator, error) {
	l := log.Default().Named("permission").Named("opa")
	store := inmem.NewFromReader(bytes.NewReader(data))
	r := rego.New(
		rego.Query("data.rse.authz.allow"),
		rego.Module("rse.authz", string(policy)),
		rego.Store(store),
	)
	if query, err := r.PrepareForEval(context.Background()); err != nil {
		l.Error("failed to prepare query", log.ErrorField(err))
		return nil, err
	} else {
		return &OpaEvaluator{
			r:     r,
			query: query,
			l:     l,
		}, nil
	}
}

func (o *OpaEvaluator) Allowed(ctx context.Context, req Request) bool {
	if rs, err := o.query.Eval(ctx, rego.EvalInput(req)); err != nil {
		o.l.Error("Allowed", log.ErrorField(err))
		return false
	} else {
		o.l.Debug("res",
			log.String("kind", req.Kind),
			log.String("sender", req.Sender),
			log.Bool("allowed", rs.Allowed()))
		return rs.Allowed()
	}
}

// AllowAll is used when no policy is configured.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context, Request) bool {
	return true
}
