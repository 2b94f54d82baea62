package config

import "time"

// Runtime is the operator-editable configuration stored in config.yaml.
// Secrets never live here; they come from the environment.
type Runtime struct {
	Server   ServerConfig   `yaml:"server"`
	Replies  RepliesConfig  `yaml:"replies"`
	PinCheck PinCheckConfig `yaml:"pin_check"`
}

// ServerConfig holds service metadata.
type ServerConfig struct {
	Name string `yaml:"name"`
}

// RepliesConfig holds the SMS reply texts for inbound message handling.
type RepliesConfig struct {
	Help          string `yaml:"help"`
	StopAck       string `yaml:"stop_ack"`
	StartPrompt   string `yaml:"start_prompt"`
	ReactivateAck string `yaml:"reactivate_ack"`
	SubscribeAck  string `yaml:"subscribe_ack"`
	NeedName      string `yaml:"need_name"`
	NeedPhone     string `yaml:"need_phone"`
}

// PinCheckConfig holds the fixed-window rate rule for the PIN check route.
type PinCheckConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	WindowMinutes int `yaml:"window_minutes"`
}

func (p PinCheckConfig) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

// DefaultRuntime returns a new Runtime with default values.
func DefaultRuntime() *Runtime {
	return &Runtime{
		Server: ServerConfig{
			Name: "textline",
		},
		Replies: RepliesConfig{
			Help:          "Text STOP to unsubscribe, START to resubscribe, or send your name and number to join.",
			StopAck:       "You have been unsubscribed. Text START to rejoin.",
			StartPrompt:   "Welcome! Reply with your name and phone number to subscribe.",
			ReactivateAck: "Welcome back! You are subscribed again.",
			SubscribeAck:  "Thanks %s, you're on the list.",
			NeedName:      "We couldn't find a name in your message. Please include your name.",
			NeedPhone:     "We couldn't read a phone number from your message. Please include one.",
		},
		PinCheck: PinCheckConfig{
			MaxAttempts:   10,
			WindowMinutes: 5,
		},
	}
}
