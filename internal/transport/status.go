// ABOUTME: Status values reported by drivers to the supervisor and UI
// ABOUTME: Listening, Connected, Error and PreviewSample
package transport

import (
	"encoding/json"
	"fmt"
)

// StatusKind tags a Status
type StatusKind int

const (
	StatusListening StatusKind = iota
	StatusConnected
	StatusError
	StatusPreviewSample
)

func (k StatusKind) String() string {
	switch k {
	case StatusListening:
		return "listening"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusPreviewSample:
		return "preview"
	default:
		return fmt.Sprintf("status(%d)", int(k))
	}
}

// Status is a one-way notification about stream state
type Status struct {
	Kind StatusKind
	// Port is set for StatusListening
	Port uint16
	// Message is set for StatusError
	Message string
	// Sample is set for StatusPreviewSample
	Sample []byte
}

// Listening creates a listening status
func Listening(port uint16) *Status {
	return &Status{Kind: StatusListening, Port: port}
}

// Connected creates a connected status
func Connected() *Status {
	return &Status{Kind: StatusConnected}
}

// Failed creates an error status from err
func Failed(err error) *Status {
	return &Status{Kind: StatusError, Message: err.Error()}
}

// PreviewSample creates a preview status
func PreviewSample(sample []byte) *Status {
	return &Status{Kind: StatusPreviewSample, Sample: sample}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusListening:
		return fmt.Sprintf("listening on %d", s.Port)
	case StatusError:
		return "error: " + s.Message
	case StatusPreviewSample:
		return fmt.Sprintf("preview (%d bytes)", len(s.Sample))
	default:
		return s.Kind.String()
	}
}

type statusJSON struct {
	Kind    string `json:"kind"`
	Port    uint16 `json:"port,omitempty"`
	Message string `json:"message,omitempty"`
	Sample  []byte `json:"sample,omitempty"`
}

// MarshalJSON encodes the status for the websocket feed
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{
		Kind:    s.Kind.String(),
		Port:    s.Port,
		Message: s.Message,
		Sample:  s.Sample,
	})
}
