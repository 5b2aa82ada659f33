// Package camera defines the acquisition collaborator contract and a
// simulated implementation.
//
// The pipeline treats the camera as an external collaborator: it opens
// its own capture pipeline, exposes named device properties, and invokes
// the registered callback with the newest decoded frame on a thread it
// owns, at a rate unrelated to analysis throughput. The callback must
// return quickly; all real work happens on the pipeline's workers.
package camera

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hazyhaar/beamscope/frame"
)

// FrameCallback receives one frame per capture. The frame buffer may be
// reused by the camera after the callback returns; receivers that keep
// the data must clone it.
type FrameCallback func(*frame.Frame)

// Camera is the acquisition collaborator contract.
type Camera interface {
	// Start opens the capture pipeline and begins invoking the
	// registered callback. A Start failure is the one fatal startup
	// condition of the whole station.
	Start() error
	// Stop halts acquisition. No callback fires after Stop returns.
	Stop() error
	// Property returns the value of a named device property.
	Property(name string) (string, error)
	// SetProperty updates a named device property.
	SetProperty(name, value string) error
	// SetFrameCallback registers fn. Must be called before Start.
	SetFrameCallback(fn FrameCallback)
}

// StateFile is the persisted device configuration, as written by the
// vendor tooling: a flat map of property names to values.
type StateFile struct {
	Properties map[string]string `json:"properties"`
}

// LoadStateFile reads a device state file. A missing file is not an
// error; it yields an empty property set.
func LoadStateFile(path string) (*StateFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &StateFile{Properties: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("camera: read state file: %w", err)
	}
	var sf StateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("camera: parse state file: %w", err)
	}
	if sf.Properties == nil {
		sf.Properties = map[string]string{}
	}
	return &sf, nil
}

// TriggerEnabled reports whether the state file configures the camera
// in trigger mode. Both key spellings occur in the wild.
func (sf *StateFile) TriggerEnabled() bool {
	v, ok := sf.Properties["TriggerMode"]
	if !ok {
		v = sf.Properties["Trigger Mode"]
	}
	return v == "On"
}
