package engine

// HiddenVote replaces another participant's vote value until the round is
// revealed.
const HiddenVote = "hidden"

// RoomView is the client-facing projection of a Room.
type RoomView struct {
	Code         string            `json:"code"`
	Participants []Participant     `json:"participants"`
	Votes        map[string]string `json:"votes"`
	Scale        Scale             `json:"scale"`
	Revealed     bool              `json:"revealed"`
}

// For returns the view as seen by recipient. Before reveal every vote except
// the recipient's own is replaced with HiddenVote, so "has voted" stays
// visible but the value does not. An empty recipient is an observer and sees
// no values before reveal.
//
// The receiver is not modified; the returned view never shares its votes map.
func (v RoomView) For(recipient string) RoomView {
	out := v
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	out.Votes = make(map[string]string, len(v.Votes))
	for id, value := range v.Votes {
		if !v.Revealed && id != recipient {
			value = HiddenVote
		}
		out.Votes[id] = value
	}
	return out
}

// HasVoted reports whether participant id has a vote in the view.
func (v RoomView) HasVoted(id string) bool {
	_, ok := v.Votes[id]
	return ok
}
