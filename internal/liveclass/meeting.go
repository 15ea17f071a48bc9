package liveclass

import (
	"fmt"
	"time"
)

// MeetingBaseURL is the public video-conferencing host rooms are created on.
const MeetingBaseURL = "https://meet.jit.si/"

// RoomPrefix is prepended to every generated meeting room name.
const RoomPrefix = "SkillForge_Live_"

// MeetingLink returns the embeddable meeting URL for a room created at now.
// The link is opaque to every other component.
func MeetingLink(now time.Time) string {
	return fmt.Sprintf("%s%s%d", MeetingBaseURL, RoomPrefix, now.UnixMilli())
}
