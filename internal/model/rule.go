package model

// TriggerRule is an operator-editable row mapping a normalized hashtag to a
// sequence trigger, optionally naming companion triggers to cancel on match.
// Rules outrank the compiled-in alias table so campaigns can be rerouted
// without a deployment.
type TriggerRule struct {
	Tag            string
	Trigger        string
	CancelTriggers []string
}
