// Package models defines the wire schemas exchanged with the call leg,
// the transcription endpoint, and the dashboard observers.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTranscriptEvent reports a transcription endpoint message that
// could not be decoded at all. Messages that decode but carry no results are
// not errors; the endpoint sends those routinely during silence.
var ErrMalformedTranscriptEvent = errors.New("malformed transcript event")

// StopMessage is the control message that ends a transcription session.
type StopMessage struct {
	Action string `json:"action"`
}

// NewStopMessage returns the stop control message.
func NewStopMessage() StopMessage {
	return StopMessage{Action: "stop"}
}

// MergeStartFields decodes a control payload received from the call leg and
// stamps the fields the transcription endpoint requires on its start
// configuration. The call leg's own fields are preserved.
func MergeStartFields(payload []byte) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("control payload is not a JSON object: %w", err)
	}
	fields["action"] = "start"
	fields["continuous"] = true
	fields["interim_results"] = true
	return json.Marshal(fields)
}

// TranscriptAlternative is one hypothesis for a stretch of speech.
type TranscriptAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TranscriptResult is one result block in a transcription endpoint event.
type TranscriptResult struct {
	Alternatives []TranscriptAlternative `json:"alternatives"`
	Final        bool                    `json:"final"`
}

// TranscriptEvent is an inbound message from the transcription endpoint.
// An event with no results is valid; it carries nothing to act on.
type TranscriptEvent struct {
	Results []TranscriptResult `json:"results"`
}

// ParseTranscriptEvent decodes a transcription endpoint message.
func ParseTranscriptEvent(data []byte) (TranscriptEvent, error) {
	var ev TranscriptEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TranscriptEvent{}, fmt.Errorf("%w: %v", ErrMalformedTranscriptEvent, err)
	}
	return ev, nil
}

// Transcript returns the top alternative of the first result, and whether the
// event carried one at all.
func (e TranscriptEvent) Transcript() (text string, final bool, ok bool) {
	if len(e.Results) == 0 || len(e.Results[0].Alternatives) == 0 {
		return "", false, false
	}
	r := e.Results[0]
	return r.Alternatives[0].Transcript, r.Final, true
}

// Tone is a single (category, score) pair from tone analysis.
type Tone struct {
	ToneID   string  `json:"tone_id"`
	ToneName string  `json:"tone_name"`
	Score    float64 `json:"score"`
}

// ToneResult is the ordered tone sequence produced for one transcript.
// Its JSON encoding of Tones is exactly what dashboard observers receive.
type ToneResult struct {
	Transcript string `json:"-"`
	Tones      []Tone `json:"tones"`
}

// DashboardPayload encodes the tone sequence for dashboard delivery.
func (r ToneResult) DashboardPayload() ([]byte, error) {
	return json.Marshal(r.Tones)
}

// CallStatus is the call-status webhook body posted by the call provider.
type CallStatus struct {
	To     string `json:"to"`
	Status string `json:"status"`
}

// RecordingMeta is the recording-metadata webhook body.
type RecordingMeta struct {
	ConversationUUID string `json:"conversation_uuid"`
	RecordingURL     string `json:"recording_url,omitempty"`
}
