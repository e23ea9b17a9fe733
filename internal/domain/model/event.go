package model

// EventKind tags a random event variant. Behavior lives in the events
// package dispatcher, never on the value itself.
type EventKind string

const (
	EventNothing    EventKind = "nothing"
	EventRumor      EventKind = "rumor"
	EventBenefactor EventKind = "benefactor"
	EventStreetFind EventKind = "street_find"
	EventBust       EventKind = "bust"
	EventSurge      EventKind = "surge"
	EventCrash      EventKind = "crash"
	EventSickness   EventKind = "sickness"
	EventPolice     EventKind = "police"
	EventMugging    EventKind = "mugging"
)

// Category drives how the caller styles a message.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
)

// Message is a line of narrative returned to the caller.
type Message struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Event is a drawn random event as reported to the caller.
type Event struct {
	Kind             EventKind  `json:"kind"`
	Category         Category   `json:"category"`
	Text             string     `json:"text"`
	RequiresDecision bool       `json:"requiresDecision,omitempty"`
	Encounter        *Encounter `json:"encounter,omitempty"`
}
