package media

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// validateSDP checks that raw parses and offers at least one audio section.
func validateSDP(raw string) error {
	var desc sdp.SessionDescription
	if err := desc.UnmarshalString(raw); err != nil {
		return fmt.Errorf("parse session description: %w", err)
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media == "audio" {
			return nil
		}
	}
	return ErrNoAudio
}
