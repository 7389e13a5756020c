// Package protocol defines the JSON frames exchanged with devices.
//
// The transport is one WebSocket per device: text frames carry the JSON
// messages below, binary frames carry exactly one 60 ms Opus audio frame
// (16 kHz mono). Inbound frames are decoded into [Inbound], a union over all
// client message shapes; outbound frames are purpose-built structs.
package protocol

// Frame type discriminators.
const (
	TypeHello  = "hello"
	TypeAbort  = "abort"
	TypeListen = "listen"
	TypeIoT    = "iot"
	TypeSTT    = "stt"
	TypeLLM    = "llm"
	TypeTTS    = "tts"
)

// Listen modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Listen states.
const (
	StateStart  = "start"
	StateStop   = "stop"
	StateDetect = "detect"
)

// TTS emission states.
const (
	TTSStart         = "start"
	TTSSentenceStart = "sentence_start"
	TTSSentenceEnd   = "sentence_end"
	TTSStop          = "stop"
)

// Inbound is the union of all client text frames; Type selects which fields
// are meaningful.
type Inbound struct {
	Type string `json:"type"`

	// hello
	Version     int          `json:"version,omitempty"`
	Transport   string       `json:"transport,omitempty"`
	AudioParams *AudioParams `json:"audio_params,omitempty"`

	// listen
	Mode  string `json:"mode,omitempty"`
	State string `json:"state,omitempty"`
	Text  string `json:"text,omitempty"`

	// iot
	Descriptors []Descriptor  `json:"descriptors,omitempty"`
	States      []StateUpdate `json:"states,omitempty"`
}

// AudioParams describes the audio framing a peer uses.
type AudioParams struct {
	Format        string `json:"format,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	FrameDuration int    `json:"frame_duration,omitempty"`
}

// Descriptor is a device-advertised capability record.
type Descriptor struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]PropertyDef `json:"properties,omitempty"`
	Methods     map[string]MethodDef   `json:"methods,omitempty"`
}

// PropertyDef declares one capability property.
type PropertyDef struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
}

// MethodDef declares one capability method.
type MethodDef struct {
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]PropertyDef `json:"parameters,omitempty"`
}

// StateUpdate carries new property values for one capability.
type StateUpdate struct {
	Name  string         `json:"name"`
	State map[string]any `json:"state"`
}

// STTFrame echoes the recognized utterance back to the device.
type STTFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// NewSTT builds an STT echo frame.
func NewSTT(text, sessionID string) STTFrame {
	return STTFrame{Type: TypeSTT, Text: text, SessionID: sessionID}
}

// LLMFrame is the pre-speech cue shown while the model thinks.
type LLMFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Emotion   string `json:"emotion"`
	SessionID string `json:"session_id"`
}

// NewThinkingCue builds the standard "😊/happy" cue frame.
func NewThinkingCue(sessionID string) LLMFrame {
	return LLMFrame{Type: TypeLLM, Text: "😊", Emotion: "happy", SessionID: sessionID}
}

// TTSFrame announces speech emission state changes.
type TTSFrame struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id"`
}

// NewTTS builds a TTS state frame. text is only set for sentence markers.
func NewTTS(state, text, sessionID string) TTSFrame {
	return TTSFrame{Type: TypeTTS, State: state, Text: text, SessionID: sessionID}
}

// IoTCommand is one method invocation sent to the device.
type IoTCommand struct {
	Name       string         `json:"name"`
	Method     string         `json:"method"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// IoTFrame carries method invocations to the device.
type IoTFrame struct {
	Type     string       `json:"type"`
	Commands []IoTCommand `json:"commands"`
}

// NewIoT builds an outbound iot command frame.
func NewIoT(commands ...IoTCommand) IoTFrame {
	return IoTFrame{Type: TypeIoT, Commands: commands}
}
