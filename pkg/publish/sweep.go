package publish

import (
	"context"

	"github.com/infinilabs/cococi/pkg/central"
)

// Selector picks the deployments a sweep should drop.
type Selector func(central.DeploymentStatus) bool

func FailedOnly(d central.DeploymentStatus) bool {
	return d.State == central.StateFailed
}

// Unpublished selects failed deployments as well as ones still
// validating or publishing.
func Unpublished(d central.DeploymentStatus) bool {
	return d.State != central.StatePublished
}

// SweepResult reports what a sweep did. Dropped and Failed between
// them cover Selected, unless the sweep was not confirmed.
type SweepResult struct {
	Selected  []central.DeploymentStatus
	Dropped   []central.DeploymentID
	Failed    []*CleanupError
	Confirmed bool
}

// Sweep lists deployments and drops those sel picks. When confirm is
// non-nil it is shown the selection first and nothing is dropped
// unless it returns true. A failed drop doesn't stop the sweep.
func (p *Publisher) Sweep(ctx context.Context, sel Selector, confirm func([]central.DeploymentStatus) bool) (SweepResult, error) {
	var res SweepResult
	deployments, err := p.client.List(ctx)
	if err != nil {
		return res, err
	}
	for _, d := range deployments {
		if sel(d) {
			res.Selected = append(res.Selected, d)
		}
	}
	p.logger.Log("info", "swept deployments", "listed", len(deployments), "selected", len(res.Selected))
	if len(res.Selected) == 0 {
		return res, nil
	}
	if confirm != nil && !confirm(res.Selected) {
		p.logger.Log("info", "sweep cancelled")
		return res, nil
	}
	res.Confirmed = true

	for _, d := range res.Selected {
		if err := p.Drop(ctx, d.ID); err != nil {
			res.Failed = append(res.Failed, err.(*CleanupError))
			continue
		}
		res.Dropped = append(res.Dropped, d.ID)
	}
	return res, nil
}

func (p *Publisher) CleanFailed(ctx context.Context) (SweepResult, error) {
	return p.Sweep(ctx, FailedOnly, nil)
}

func (p *Publisher) CleanAll(ctx context.Context, confirm func([]central.DeploymentStatus) bool) (SweepResult, error) {
	return p.Sweep(ctx, Unpublished, confirm)
}
