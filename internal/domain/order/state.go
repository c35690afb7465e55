package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnCancel(o *Order, reason string) (OrderState, error)
}

type placedState struct{}

func (placedState) Status() Status { return StatusPlaced }

func (placedState) OnCancel(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnCancel(*Order, string) (OrderState, error) {
	return cancelledState{}, nil
}

type unknownState struct{ status Status }

func (s unknownState) Status() Status { return s.status }

func (unknownState) OnCancel(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPlaced:
		return placedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return unknownState{status: s}
	}
}
