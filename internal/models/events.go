package models

// TranscriptRecord is the event published for each final transcript.
type TranscriptRecord struct {
	EventType string `json:"eventType"`
	CallID    string `json:"callId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
}

// ToneRecord is the event published for each tone analysis result.
type ToneRecord struct {
	EventType string `json:"eventType"`
	CallID    string `json:"callId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Tones     []Tone `json:"tones"`
}

// NCCO is a call-flow document: the ordered actions returned to the call
// provider when it asks what to do with an inbound call.
type NCCO []NCCOAction

// NCCOAction is a single step in a call-flow document.
type NCCOAction struct {
	Action   string         `json:"action"`
	EventURL []string       `json:"eventUrl,omitempty"`
	From     string         `json:"from,omitempty"`
	Endpoint []NCCOEndpoint `json:"endpoint,omitempty"`
	Text     string         `json:"text,omitempty"`
}

// NCCOEndpoint describes where a connect action delivers the call audio.
type NCCOEndpoint struct {
	Type        string            `json:"type"`
	URI         string            `json:"uri"`
	ContentType string            `json:"content-type"`
	Headers     map[string]string `json:"headers"`
}
