package orchestrator

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
	EventDone  Event = "done"
)

var allStates = []string{string(StateIdle), string(StateRecording), string(StateProcessing)}

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventDone:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

// Step names the pipeline stage shown while processing.
type Step string

const (
	StepSavingAudio  Step = "Saving audio"
	StepTranscribing Step = "Transcribing"
	StepSummarizing  Step = "Summarizing"
	StepSaving       Step = "Saving"
	StepCopying      Step = "Copying"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerFrame returns the frame for tick n.
func SpinnerFrame(n int) string {
	return spinnerFrames[n%len(spinnerFrames)]
}
