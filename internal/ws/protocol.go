package ws

import (
	"encoding/json"
)

// Command is the value of the "message" field in an inbound frame.
type Command string

// CmdGetData asks for an immediate snapshot outside the periodic schedule.
const CmdGetData Command = "get_data"

// InboundMessage is the only inbound frame shape the feed understands.
type InboundMessage struct {
	Message Command `json:"message"`
}

// parseCommand decodes raw and reports the recognized command, if any.
// Anything that is not a JSON object with a known "message" value yields
// false.
func parseCommand(raw []byte) (Command, bool) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	switch msg.Message {
	case CmdGetData:
		return msg.Message, true
	default:
		return "", false
	}
}
