package model

// ActionType names a player-initiated state change.
type ActionType string

const (
	ActionBuy     ActionType = "buy"
	ActionSell    ActionType = "sell"
	ActionTravel  ActionType = "travel"
	ActionRepay   ActionType = "repay"
	ActionResolve ActionType = "resolve"
)

// Action is the envelope received from the client.
type Action struct {
	Type ActionType `json:"type"`
	Data ActionData `json:"data"`
}

// ActionData carries the per-type payload. Unused fields stay zero.
type ActionData struct {
	Commodity    string `json:"commodity,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	ExpectedCost int    `json:"expectedCost,omitempty"` // client-side price * quantity, re-checked by the server
	Destination  string `json:"destination,omitempty"`
	Amount       int    `json:"amount,omitempty"`
	Choice       Choice `json:"choice,omitempty"`
}

// Buy builds a purchase action.
func Buy(commodity string, qty, expectedCost int) Action {
	return Action{Type: ActionBuy, Data: ActionData{Commodity: commodity, Quantity: qty, ExpectedCost: expectedCost}}
}

// Sell builds a sale action.
func Sell(commodity string, qty int) Action {
	return Action{Type: ActionSell, Data: ActionData{Commodity: commodity, Quantity: qty}}
}

// Travel builds a travel action.
func Travel(destination string) Action {
	return Action{Type: ActionTravel, Data: ActionData{Destination: destination}}
}

// Repay builds a debt repayment action.
func Repay(amount int) Action {
	return Action{Type: ActionRepay, Data: ActionData{Amount: amount}}
}

// Resolve builds the answer to a pending encounter.
func Resolve(choice Choice) Action {
	return Action{Type: ActionResolve, Data: ActionData{Choice: choice}}
}
