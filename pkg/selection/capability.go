package selection

import "fmt"

// Capability is a canonical capability tag a request may ask for.
type Capability string

const (
	CapText  Capability = "Text"
	CapCode  Capability = "Code"
	CapImage Capability = "Image"
	CapVideo Capability = "Video"
	CapAudio Capability = "Audio"
	Cap3D    Capability = "3D"
	CapData  Capability = "Data"
)

// AllCapabilities lists every valid capability in a stable order.
var AllCapabilities = []Capability{CapText, CapCode, CapImage, CapVideo, CapAudio, Cap3D, CapData}

// ParseCapability validates a raw capability string.
func ParseCapability(raw string) (Capability, error) {
	for _, cap := range AllCapabilities {
		if string(cap) == raw {
			return cap, nil
		}
	}
	return "", fmt.Errorf("selection: unknown capability %q", raw)
}

// ParseCapabilities validates and deduplicates a raw capability list. At
// least one member is required.
func ParseCapabilities(raw []string) ([]Capability, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("selection: at least one capability is required")
	}
	seen := make(map[Capability]bool, len(raw))
	out := make([]Capability, 0, len(raw))
	for _, item := range raw {
		cap, err := ParseCapability(item)
		if err != nil {
			return nil, err
		}
		if seen[cap] {
			continue
		}
		seen[cap] = true
		out = append(out, cap)
	}
	return out, nil
}
