// Package mqtt defines the broker-facing contracts of the scheduler: the
// outbound event publisher and the inbound duty commands sent by vehicles.
package mqtt

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/dutysched/core/model"
)

// Publisher sends duty transitions to the broker.
type Publisher interface {
	PublishEvent(ev model.TransitionEvent) error
}

// Action is a lifecycle command a vehicle may send for its duty.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Command is the payload received on a duty command topic.
type Command struct {
	CommandID string `json:"command_id"`
	DutyID    string `json:"duty_id"`
	Action    Action `json:"action"`
}

// Validate checks the command shape.
func (c Command) Validate() error {
	if c.DutyID == "" {
		return &model.InvalidFieldError{Field: "duty_id", Reason: "required"}
	}
	switch c.Action {
	case ActionStart, ActionComplete, ActionCancel:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
}

// CommandResult is published in reply to a command.
type CommandResult struct {
	CommandID string          `json:"command_id"`
	DutyID    string          `json:"duty_id"`
	Action    Action          `json:"action"`
	OK        bool            `json:"ok"`
	State     model.DutyState `json:"state,omitempty"`
	Error     string          `json:"error,omitempty"`
	Kind      string          `json:"kind,omitempty"`
}

// DutyController applies lifecycle commands. The assignment engine
// implements it.
type DutyController interface {
	StartDuty(ctx context.Context, id string) (model.Duty, error)
	CompleteDuty(ctx context.Context, id string) (model.Duty, error)
	CancelDuty(ctx context.Context, id string) (model.Duty, error)
}

// Apply runs cmd against ctl and describes the outcome.
func Apply(ctx context.Context, ctl DutyController, cmd Command) CommandResult {
	res := CommandResult{CommandID: cmd.CommandID, DutyID: cmd.DutyID, Action: cmd.Action}
	if err := cmd.Validate(); err != nil {
		res.Error, res.Kind = err.Error(), "validation"
		return res
	}
	var (
		d   model.Duty
		err error
	)
	switch cmd.Action {
	case ActionStart:
		d, err = ctl.StartDuty(ctx, cmd.DutyID)
	case ActionComplete:
		d, err = ctl.CompleteDuty(ctx, cmd.DutyID)
	case ActionCancel:
		d, err = ctl.CancelDuty(ctx, cmd.DutyID)
	}
	if err != nil {
		res.Error, res.Kind = err.Error(), model.CategoryName(err)
		return res
	}
	res.OK, res.State = true, d.State
	return res
}

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

func (t Topics) base() string {
	if t.Prefix == "" {
		return "fleet"
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// DutyEvents is where every transition of a duty is published.
func (t Topics) DutyEvents(dutyID string) string {
	return t.base() + "/duties/" + dutyID + "/events"
}

// VehicleDuty carries the latest transition touching a vehicle, retained.
func (t Topics) VehicleDuty(vehicleID string) string {
	return t.base() + "/vehicles/" + vehicleID + "/duty"
}

// Commands is the wildcard subscription for duty commands.
func (t Topics) Commands() string {
	return t.base() + "/duties/+/command"
}

// CommandResult is where the outcome of a command is published.
func (t Topics) CommandResult(dutyID string) string {
	return t.base() + "/duties/" + dutyID + "/command/result"
}

// BridgeStatus carries the online/offline state of the bridge.
func (t Topics) BridgeStatus() string {
	return t.base() + "/bridge/status"
}

// DutyIDFromCommandTopic extracts the duty id from a command topic.
func (t Topics) DutyIDFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.base()+"/duties/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
