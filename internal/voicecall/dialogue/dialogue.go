// Package dialogue holds the reservation script: which slot is asked next,
// what the assistant says at each step, and when the call is done.
package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"reservation-bridge/internal/voicecall/session"
)

// ToolName is the only function the speech service may call.
const ToolName = "update_reservation"

var (
	ErrMalformedArguments = errors.New("malformed tool arguments")
	ErrUnknownTool        = errors.New("unknown tool")
)

// Update is one extraction reported by the speech service. Slots only holds
// values that were present and non-empty.
type Update struct {
	Slots   map[session.Slot]string
	Confirm bool
}

// Result is the outcome of applying an Update.
type Result struct {
	Step session.Step
	// Prompt is the next question to ask. Empty when Terminal or when the step
	// has nothing to say.
	Prompt   string
	Terminal bool
}

// ParseCall decodes a tool call from the speech service. Calls to anything
// other than ToolName fail with ErrUnknownTool.
func ParseCall(name, arguments string) (Update, error) {
	if name != ToolName {
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return ParseArguments(arguments)
}

// ParseArguments decodes the JSON arguments of an update_reservation call.
// Numbers are accepted for any slot and kept in their textual form.
func ParseArguments(raw string) (Update, error) {
	u := Update{Slots: make(map[session.Slot]string)}
	if strings.TrimSpace(raw) == "" {
		return u, nil
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}

	for _, slot := range session.Slots {
		value, ok := args[string(slot)]
		if !ok {
			continue
		}
		text, err := slotText(value)
		if err != nil {
			return Update{}, fmt.Errorf("%w: slot %s: %v", ErrMalformedArguments, slot, err)
		}
		if text != "" {
			u.Slots[slot] = text
		}
	}

	if value, ok := args["confirm"]; ok && string(value) != "null" {
		if err := json.Unmarshal(value, &u.Confirm); err != nil {
			return Update{}, fmt.Errorf("%w: confirm: %v", ErrMalformedArguments, err)
		}
	}

	return u, nil
}

func slotText(value json.RawMessage) (string, error) {
	if string(value) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// Advance applies u to cs and moves the dialogue forward.
//
// Confirmation ends the dialogue even when some slots are still unset. Updates
// to a confirmed session change nothing and are not terminal again.
func Advance(cs *session.CallSession, u Update) (Result, error) {
	if cs == nil {
		return Result{}, session.ErrSessionNotFound
	}
	if cs.Step == session.StepConfirmed {
		return Result{Step: session.StepConfirmed}, nil
	}
	if cs.Fields == nil {
		cs.Fields = make(session.Fields)
	}

	for slot, value := range u.Slots {
		if value == "" {
			continue
		}
		cs.Fields[slot] = value
	}

	if u.Confirm {
		cs.Step = session.StepConfirmed
		return Result{Step: session.StepConfirmed, Terminal: true}, nil
	}

	next := NextStep(cs.Fields)
	prompt, ok := Prompt(next, cs.Fields)
	if !ok {
		return Result{Step: cs.Step}, nil
	}
	cs.Step = next
	return Result{Step: next, Prompt: prompt}, nil
}

// NextStep is the first unset slot's step, or StepConfirm once all are set.
func NextStep(fields session.Fields) session.Step {
	slot, ok := fields.FirstUnset()
	if !ok {
		return session.StepConfirm
	}
	return session.AskStep(slot)
}
