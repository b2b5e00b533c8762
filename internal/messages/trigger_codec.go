package messages

import (
	"fmt"
	"strings"
)

// String renders a DetectorTrigger as "username station status [reason]",
// the wire format in §6.
func (t DetectorTrigger) String() string {
	var b strings.Builder
	b.WriteString(t.UserInfo.Username)
	b.WriteByte(' ')
	b.WriteString(t.UserInfo.StationID)
	b.WriteByte(' ')
	b.WriteString(t.Status.String())
	if t.Reason != ReasonNone {
		b.WriteByte(' ')
		b.WriteString(string(t.Reason))
	}
	return b.String()
}

// ParseDetectorTrigger parses a line produced by DetectorTrigger.String,
// round-tripping username, station, status and an optional reason.
func ParseDetectorTrigger(line string) (DetectorTrigger, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return DetectorTrigger{}, fmt.Errorf("messages: malformed trigger line %q", line)
	}

	status, err := parseStatus(fields[2])
	if err != nil {
		return DetectorTrigger{}, err
	}

	trigger := DetectorTrigger{
		UserInfo: UserInfo{Username: fields[0], StationID: fields[1]},
		Status:   status,
	}
	if len(fields) > 3 {
		trigger.Reason = Reason(fields[3])
	}
	return trigger, nil
}

func parseStatus(word string) (Status, error) {
	switch word {
	case "online":
		return Created, nil
	case "offline":
		return Deleted, nil
	case "reliable":
		return Reliable, nil
	case "unreliable":
		return Unreliable, nil
	default:
		return 0, fmt.Errorf("messages: unknown trigger status %q", word)
	}
}
