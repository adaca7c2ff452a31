package tui

import (
	"time"

	"github.com/pkg/errors"
)

const TopicUIActions = "livelog.ui.actions"

const UITypeActionRequest = "tui.action.request"

type ActionKind string

const (
	ActionReconnect ActionKind = "reconnect"
	ActionPause     ActionKind = "pause"
	ActionResume    ActionKind = "resume"
)

type ActionRequest struct {
	Kind ActionKind `json:"kind"`
	At   time.Time  `json:"at"`
}

type ActionRequestMsg struct {
	Request ActionRequest
}

func PublishAction(bus *Bus, req ActionRequest) error {
	if bus == nil {
		return errors.New("missing bus")
	}
	if req.Kind == "" {
		return errors.New("missing action kind")
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	return bus.Publish(TopicUIActions, UITypeActionRequest, req)
}
