package pipeline

import (
	"errors"

	"github.com/udipth01/acefone/internal/telephony"
)

// Fatal pipeline errors. Recoverable failures (recording, transcription,
// summary) never surface as errors: they degrade to placeholder content and
// the run continues.
var (
	// ErrResolution means no CRM entity could be found or created for the
	// caller; there is nothing to post to.
	ErrResolution = errors.New("crm resolution failed")

	// ErrPublish means the timeline comment could not be appended.
	ErrPublish = errors.New("crm publish failed")
)

// Kind names an error class for webhook responses and test assertions.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, telephony.ErrAuthentication):
		return "authentication"
	case errors.Is(err, telephony.ErrRecordNotFound):
		return "record_not_found"
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrPublish):
		return "publish"
	default:
		return "internal"
	}
}
