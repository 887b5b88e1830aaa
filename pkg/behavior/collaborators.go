package behavior

// Sound plays the ambient loop and one-shot effects.
type Sound interface {
	StartLoop(soundID string)
	StopLoop()
	PlayOnce(soundID string)
}

// Countdown shows the visible countdown.
type Countdown interface {
	ShowCountdown(remaining int)
	HideCountdown()
}

// Navigator performs the screen/mode change when a mode finishes.
type Navigator interface {
	TriggerModeTransition(from Mode)
}

// Collaborators are the outward commands. None of them may block. Nil
// fields are replaced with no-ops.
type Collaborators struct {
	Sound     Sound
	Countdown Countdown
	Navigator Navigator
}

type nopSound struct{}

func (nopSound) StartLoop(string) {}
func (nopSound) StopLoop()        {}
func (nopSound) PlayOnce(string)  {}

type nopCountdown struct{}

func (nopCountdown) ShowCountdown(int) {}
func (nopCountdown) HideCountdown()    {}

type nopNavigator struct{}

func (nopNavigator) TriggerModeTransition(Mode) {}

func (c Collaborators) withDefaults() Collaborators {
	if c.Sound == nil {
		c.Sound = nopSound{}
	}
	if c.Countdown == nil {
		c.Countdown = nopCountdown{}
	}
	if c.Navigator == nil {
		c.Navigator = nopNavigator{}
	}
	return c
}
