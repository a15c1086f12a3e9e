package dialogue

import (
	"fmt"

	"reservation-bridge/internal/voicecall/session"
)

const (
	// ClosingMessage is spoken once the caller confirms.
	ClosingMessage = "Thank you! Your reservation is confirmed. We look forward to seeing you. Goodbye!"

	// SystemInstructions drives the speech service for the whole call.
	SystemInstructions = `You are a friendly host taking restaurant reservations over the phone.
Collect the caller's name, the date, the time, the party size and any special notes.
Every time the caller gives you one of these details, call the update_reservation tool with
what you heard, even if it is only one field. When the caller agrees that the reservation
read back to them is correct, call update_reservation with confirm set to true.
Only ask the question you are given. Keep every reply short and natural.`
)

var prompts = map[session.Step]string{
	session.StepAskName:      "May I have your name for the reservation?",
	session.StepAskDate:      "What date would you like to book?",
	session.StepAskTime:      "What time would you like the reservation for?",
	session.StepAskPartySize: "How many people will be in your party?",
	session.StepAskNotes:     "Do you have any special requests or notes for the reservation?",
}

// Prompt returns what the assistant should say at step. The confirmation
// prompt reads back the collected details.
func Prompt(step session.Step, fields session.Fields) (string, bool) {
	if step == session.StepConfirm {
		return fmt.Sprintf("Let me confirm: a table for %s under the name %s on %s at %s. Is that correct?",
			fields[session.SlotPartySize],
			fields[session.SlotName],
			fields[session.SlotDate],
			fields[session.SlotTime],
		), true
	}
	p, ok := prompts[step]
	return p, ok
}

// ToolDescription explains ToolName to the speech service.
const ToolDescription = "Record reservation details heard from the caller, or confirm the reservation."

// ToolParameters is the JSON schema of ToolName's arguments.
func ToolParameters() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			string(session.SlotName):      str("Name the reservation is under"),
			string(session.SlotDate):      str("Date of the reservation"),
			string(session.SlotTime):      str("Time of the reservation"),
			string(session.SlotPartySize): str("Number of people in the party"),
			string(session.SlotNotes):     str("Special requests, or none"),
			"confirm": map[string]any{
				"type":        "boolean",
				"description": "True once the caller agrees the read-back is correct",
			},
		},
		"required": []string{},
	}
}
