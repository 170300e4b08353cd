package midi

// Wire-level byte classes. A status byte has the top bit set; everything
// below 0x80 is message payload.
const (
	StatusMin = 0x80

	VoiceMin = 0x80
	VoiceMax = 0xEF

	SysExStart = 0xF0
	SysExEnd   = 0xF7

	MTCQuarterFrame = 0xF1
	SongPosition    = 0xF2
	SongSelect      = 0xF3
	TuneRequest     = 0xF6

	RealtimeMin = 0xF8
	RealtimeMax = 0xFF
)

// Kind classifies a parsed message by status-byte range.
type Kind uint8

const (
	// KindVoice is a channel message, status in [0x80,0xEF], plus data bytes.
	KindVoice Kind = iota
	// KindSystemCommon is a system message with an explicit status byte.
	KindSystemCommon
	// KindSystemRealtime is a single status byte in [0xF8,0xFF]; it may
	// arrive in the middle of any other message without corrupting it.
	KindSystemRealtime
	// KindRunningStatus is data bytes only, reusing the status of the most
	// recent voice message on the same source.
	KindRunningStatus
)

func (k Kind) String() string {
	switch k {
	case KindVoice:
		return "voice"
	case KindSystemCommon:
		return "system_common"
	case KindSystemRealtime:
		return "system_realtime"
	case KindRunningStatus:
		return "running_status"
	default:
		return "unknown"
	}
}

// Message is one complete parsed MIDI message. Data holds the wire bytes:
// status byte first for every kind except KindRunningStatus, which carries
// only its data bytes.
type Message struct {
	Kind Kind
	Data []byte
}

// Status returns the message's status byte. ok is false for running-status
// messages, which carry none.
func (m Message) Status() (byte, bool) {
	if m.Kind == KindRunningStatus || len(m.Data) == 0 {
		return 0, false
	}
	return m.Data[0], true
}

// IsStatus reports whether b is a status byte.
func IsStatus(b byte) bool {
	return b&0x80 != 0
}

// IsRealtime reports whether b is in the system real-time range, including
// the undefined values 0xF9 and 0xFD.
func IsRealtime(b byte) bool {
	return b >= RealtimeMin
}

// IsUndefinedStatus reports whether b is a status byte the protocol leaves
// undefined (0xF4, 0xF5 in the common range; 0xF9, 0xFD in the real-time
// range). These are never valid on the wire.
func IsUndefinedStatus(b byte) bool {
	switch b {
	case 0xF4, 0xF5, 0xF9, 0xFD:
		return true
	}
	return false
}

// DataLen returns the number of data bytes mandated by a status byte.
func DataLen(status byte) int {
	switch {
	case status&0xF0 == 0xC0, status&0xF0 == 0xD0:
		// program change, channel pressure
		return 1
	case status == MTCQuarterFrame, status == SongSelect:
		return 1
	case status == TuneRequest:
		return 0
	default:
		return 2
	}
}
