package subscription

// Transition is a lifecycle change requested for a subscription.
// The set of transitions is closed: Pause, Resume, Cancel and UndoCancel.
type Transition interface {
	Name() string
	transition()
}

// Pause suspends payment collection for Months months.
type Pause struct {
	Months int
}

// Resume lifts a collection pause.
type Resume struct{}

// Cancel requests non-renewal at the end of the current period.
type Cancel struct{}

// UndoCancel withdraws a pending cancellation.
type UndoCancel struct{}

func (Pause) Name() string      { return "pause" }
func (Resume) Name() string     { return "resume" }
func (Cancel) Name() string     { return "cancel" }
func (UndoCancel) Name() string { return "undo_cancel" }

func (Pause) transition()      {}
func (Resume) transition()     {}
func (Cancel) transition()     {}
func (UndoCancel) transition() {}

// GatewayCall names a mutation the billing provider has to perform.
type GatewayCall string

const (
	CallPauseCollection   GatewayCall = "pause_collection"
	CallResumeCollection  GatewayCall = "resume_collection"
	CallCancelAtPeriodEnd GatewayCall = "cancel_at_period_end"
	CallResumeAutoRenew   GatewayCall = "resume_auto_renew"
)

func (c GatewayCall) String() string {
	return string(c)
}
