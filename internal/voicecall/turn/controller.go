// Package turn keeps the caller's audio and the assistant's playback from
// overlapping. All offsets are in the telephony stream's clock.
package turn

import (
	"reservation-bridge/internal/voicecall/session"

	"github.com/google/uuid"
)

// Truncation describes how much of an assistant utterance was actually heard.
type Truncation struct {
	ItemID     string
	AudioEndMs int64
}

// Controller mutates the playback state of exactly one call. It is not safe
// for concurrent use; the owning bridge serialises every call into it.
type Controller struct {
	playback *session.Playback
	newToken func() string
}

// New returns a controller over p.
func New(p *session.Playback) *Controller {
	return &Controller{
		playback: p,
		newToken: func() string { return uuid.New().String() },
	}
}

// ObserveInbound records the timestamp of an inbound media frame. It must run
// for every frame before any later event of the call is handled.
func (c *Controller) ObserveInbound(timestampMs int64) {
	c.playback.LatestInboundTimestampMs = timestampMs
}

// OnAudioDelta accounts for one assistant audio chunk sent to the caller and
// returns the mark name the telephony leg should echo once it is played.
func (c *Controller) OnAudioDelta(itemID string) string {
	p := c.playback
	if p.ResponseStartOffsetMs == nil {
		start := p.LatestInboundTimestampMs
		p.ResponseStartOffsetMs = &start
	}
	if itemID != "" {
		p.LastAudioItemID = itemID
	}

	token := c.newToken()
	p.PendingAcks = append(p.PendingAcks, token)
	return token
}

// OnMark consumes one playback acknowledgment. It returns the acknowledged
// token, or false when nothing was pending.
func (c *Controller) OnMark() (string, bool) {
	p := c.playback
	if len(p.PendingAcks) == 0 {
		return "", false
	}
	token := p.PendingAcks[0]
	p.PendingAcks = p.PendingAcks[1:]
	return token, true
}

// Pending returns the number of unacknowledged chunks.
func (c *Controller) Pending() int {
	return len(c.playback.PendingAcks)
}

// OnSpeechStarted handles the caller starting to talk. When assistant audio is
// still queued it returns the truncation to apply and resets the playback
// state; otherwise it returns false and changes nothing.
func (c *Controller) OnSpeechStarted() (Truncation, bool) {
	p := c.playback
	if len(p.PendingAcks) == 0 || p.ResponseStartOffsetMs == nil {
		return Truncation{}, false
	}

	elapsed := p.LatestInboundTimestampMs - *p.ResponseStartOffsetMs
	if elapsed < 0 {
		elapsed = 0
	}
	t := Truncation{ItemID: p.LastAudioItemID, AudioEndMs: elapsed}

	p.PendingAcks = nil
	p.LastAudioItemID = ""
	p.ResponseStartOffsetMs = nil
	return t, true
}
