package session

// Slot names one structured field of a reservation.
type Slot string

const (
	SlotName      Slot = "name"
	SlotDate      Slot = "date"
	SlotTime      Slot = "time"
	SlotPartySize Slot = "partySize"
	SlotNotes     Slot = "notes"
)

// Slots is the canonical order in which the dialogue collects fields.
var Slots = []Slot{SlotName, SlotDate, SlotTime, SlotPartySize, SlotNotes}

// Step is the dialogue position of a call.
type Step int

const (
	StepAskName Step = iota
	StepAskDate
	StepAskTime
	StepAskPartySize
	StepAskNotes
	StepConfirm
	StepConfirmed
)

var stepNames = map[Step]string{
	StepAskName:      "ask_name",
	StepAskDate:      "ask_date",
	StepAskTime:      "ask_time",
	StepAskPartySize: "ask_party_size",
	StepAskNotes:     "ask_notes",
	StepConfirm:      "confirm",
	StepConfirmed:    "confirmed",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// AskStep returns the step that asks for slot.
func AskStep(slot Slot) Step {
	for i, s := range Slots {
		if s == slot {
			return Step(i)
		}
	}
	return StepConfirm
}

// Fields holds the collected slot values. A missing key means unset.
type Fields map[Slot]string

// Get returns the value of slot and whether it has been set.
func (f Fields) Get(slot Slot) (string, bool) {
	v, ok := f[slot]
	return v, ok
}

// FirstUnset returns the first unset slot in canonical order.
func (f Fields) FirstUnset() (Slot, bool) {
	for _, slot := range Slots {
		if _, ok := f[slot]; !ok {
			return slot, true
		}
	}
	return "", false
}

// Playback tracks the audio synchronisation state of one call, expressed in
// the telephony stream's own clock.
type Playback struct {
	LastAudioItemID          string
	ResponseStartOffsetMs    *int64
	PendingAcks              []string
	LatestInboundTimestampMs int64
}

// Reset clears all counters, e.g. at the start of a stream.
func (p *Playback) Reset() {
	*p = Playback{}
}

// CallSession is the per-call state owned by exactly one bridge.
type CallSession struct {
	ID       string
	CallSID  string
	Fields   Fields
	Step     Step
	Playback Playback
}

// New returns a session with every slot unset.
func New(id string) *CallSession {
	return &CallSession{
		ID:     id,
		Fields: make(Fields),
		Step:   StepAskName,
	}
}
