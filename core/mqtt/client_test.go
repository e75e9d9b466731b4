package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/dutysched/core/model"
)

type fakeController struct{ calls []string }

func (f *fakeController) StartDuty(_ context.Context, id string) (model.Duty, error) {
	f.calls = append(f.calls, "start:"+id)
	return model.Duty{ID: id, State: model.StateInProgress}, nil
}

func (f *fakeController) CompleteDuty(_ context.Context, id string) (model.Duty, error) {
	f.calls = append(f.calls, "complete:"+id)
	return model.Duty{}, &model.IllegalTransitionError{DutyID: id, From: model.StateAssigned, To: model.StateCompleted}
}

func (f *fakeController) CancelDuty(_ context.Context, id string) (model.Duty, error) {
	f.calls = append(f.calls, "cancel:"+id)
	return model.Duty{ID: id, State: model.StateCancelled}, nil
}

func TestApply(t *testing.T) {
	ctl := &fakeController{}
	ctx := context.Background()

	res := Apply(ctx, ctl, Command{CommandID: "c1", DutyID: "duty-1", Action: ActionStart})
	assert.True(t, res.OK)
	assert.Equal(t, model.StateInProgress, res.State)

	res = Apply(ctx, ctl, Command{DutyID: "duty-1", Action: ActionComplete})
	assert.False(t, res.OK)
	assert.Equal(t, "illegal_transition", res.Kind)

	res = Apply(ctx, ctl, Command{DutyID: "duty-1", Action: "teleport"})
	assert.False(t, res.OK)
	assert.Equal(t, "validation", res.Kind)
	res = Apply(ctx, ctl, Command{Action: ActionCancel})
	assert.False(t, res.OK)

	assert.Equal(t, []string{"start:duty-1", "complete:duty-1"}, ctl.calls)
}

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "acme/"}
	assert.Equal(t, "acme/duties/d1/events", tp.DutyEvents("d1"))
	assert.Equal(t, "acme/vehicles/V1/duty", tp.VehicleDuty("V1"))
	assert.Equal(t, "acme/duties/+/command", tp.Commands())
	assert.Equal(t, "fleet/bridge/status", Topics{}.BridgeStatus())

	id, ok := tp.DutyIDFromCommandTopic("acme/duties/d1/command")
	assert.True(t, ok)
	assert.Equal(t, "d1", id)
	_, ok = tp.DutyIDFromCommandTopic("acme/duties/d1/events")
	assert.False(t, ok)
	_, ok = tp.DutyIDFromCommandTopic("other/duties/d1/command")
	assert.False(t, ok)
}
