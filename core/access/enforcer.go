package access

import (
	"context"
	"time"

	"github.com/mystudenthub/backend/core"
)

// Publisher announces permission failures, see broadcast.Bus.
type Publisher interface {
	Publish(ctx context.Context, ev *core.PermissionError) int
}

// Enforcer checks operations against a Policy.
// Every denial is published before being returned to the caller.
type Enforcer struct {
	policy  *Policy
	pub     Publisher
	nowFunc func() time.Time
}

func NewEnforcer(policy *Policy, pub Publisher) *Enforcer {
	return &Enforcer{policy: policy, pub: pub, nowFunc: core.NowFunc}
}

// Check returns a *core.PermissionError if sub may not perform op on res.
func (e *Enforcer) Check(ctx context.Context, sub Subject, op core.Operation, res Resource) error {
	if e.policy.Allowed(sub, op, res) {
		return nil
	}
	perr := &core.PermissionError{
		Path:                res.Path(),
		Operation:           op,
		RequestResourceData: res.Data,
		ActorUID:            sub.UID,
		At:                  e.nowFunc(),
	}
	if e.pub != nil {
		e.pub.Publish(ctx, perr)
	}
	return perr
}
