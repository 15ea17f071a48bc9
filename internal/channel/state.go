package channel

import (
	"errors"
	"fmt"
)

// State is the connection state of a Client.
type State int

const (
	// StateClosed is both the initial and the terminal state.
	StateClosed State = iota
	StateConnecting
	StateOpen
	// StateError is transient: it is always followed by StateClosed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Signal is an input to the connection state machine.
type Signal int

const (
	SignalDial   Signal = iota // view mounted, start connecting
	SignalOpened               // transport reported open
	SignalFailed               // transport reported an error
	SignalClosed               // transport closed, or the owner closed the channel
)

func (s Signal) String() string {
	switch s {
	case SignalDial:
		return "dial"
	case SignalOpened:
		return "opened"
	case SignalFailed:
		return "failed"
	case SignalClosed:
		return "closed"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// ErrInvalidTransition is returned by Next for a signal the state does not
// accept.
var ErrInvalidTransition = errors.New("channel: invalid state transition")

// Next returns the state entered when sig arrives in state s.
//
//	closed     --dial-->   connecting
//	connecting --opened--> open
//	connecting --failed--> error
//	open       --failed--> error
//	any        --closed--> closed
//
// Dial is only valid from closed; a Client additionally refuses to dial twice.
func Next(s State, sig Signal) (State, error) {
	switch sig {
	case SignalDial:
		if s == StateClosed {
			return StateConnecting, nil
		}
	case SignalOpened:
		if s == StateConnecting {
			return StateOpen, nil
		}
	case SignalFailed:
		if s == StateConnecting || s == StateOpen {
			return StateError, nil
		}
	case SignalClosed:
		return StateClosed, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, sig, s)
}
