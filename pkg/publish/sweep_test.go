package publish

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinilabs/cococi/pkg/central"
	"github.com/infinilabs/cococi/pkg/central/centraltest"
	transport "github.com/infinilabs/cococi/pkg/http"
)

const deploymentList = `[
	{"deploymentId":"pub","deploymentName":"coco-1.0.0","deploymentState":"PUBLISHED"},
	{"deploymentId":"bad","deploymentName":"coco-1.0.1","deploymentState":"FAILED","errors":["bad pom"]},
	{"deploymentId":"val","deploymentName":"coco-1.0.2","deploymentState":"VALIDATING"},
	{"deploymentId":"bad2","deploymentName":"coco-1.0.3","deploymentState":"FAILED"}
]`

func listed() centraltest.Response {
	return centraltest.Response{Status: http.StatusOK, Body: deploymentList}
}

func droppedIDs(trip *centraltest.Transport) []string {
	var ids []string
	for _, c := range trip.Calls(transport.DropDeployment) {
		ids = append(ids, c.Vars["id"])
	}
	return ids
}

func TestCleanFailed(t *testing.T) {
	trip := centraltest.New().
		On(transport.ListDeployments, listed()).
		On(transport.DropDeployment, dropped, serverError)
	p, _ := setup(t, trip, Config{})

	res, err := p.CleanFailed(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Selected, 2)
	assert.Equal(t, []central.DeploymentID{"bad"}, res.Dropped)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, central.DeploymentID("bad2"), res.Failed[0].ID)
	assert.Equal(t, []string{"bad", "bad2"}, droppedIDs(trip))
}

func TestCleanAllNeedsConfirmation(t *testing.T) {
	trip := centraltest.New().
		On(transport.ListDeployments, listed()).
		On(transport.DropDeployment, dropped)
	p, _ := setup(t, trip, Config{})

	var shown []central.DeploymentStatus
	res, err := p.CleanAll(context.Background(), func(sel []central.DeploymentStatus) bool {
		shown = sel
		return false
	})
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
	assert.Len(t, shown, 3)
	assert.Empty(t, droppedIDs(trip))

	res, err = p.CleanAll(context.Background(), func([]central.DeploymentStatus) bool { return true })
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, []string{"bad", "val", "bad2"}, droppedIDs(trip))
}

func TestSweepNothingSelected(t *testing.T) {
	trip := centraltest.New().On(transport.ListDeployments, centraltest.Response{Status: http.StatusOK, Body: `[]`})
	p, _ := setup(t, trip, Config{})

	called := false
	res, err := p.CleanAll(context.Background(), func([]central.DeploymentStatus) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
	assert.False(t, called, "nothing to drop, so nothing to confirm")
}

func TestSweepListUnavailable(t *testing.T) {
	p, _ := setup(t, centraltest.New(), Config{})
	_, err := p.CleanFailed(context.Background())
	assert.Equal(t, central.ErrListUnavailable, err)
}
