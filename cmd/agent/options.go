package main

import (
	"voice-agent-go/internal/config"
)

// Options are the command line flags. Each falls back to its environment
// variable, then to the value from config.Load.
type Options struct {
	RoomURL     string `long:"room-url" env:"ROOM_URL" description:"websocket room to join; reads caller speech from stdin when empty"`
	RoomName    string `long:"room" env:"ROOM_NAME" default:"console" description:"room name in console mode"`
	CallerPhone string `long:"caller-phone" env:"CALLER_PHONE" description:"caller phone in console mode"`
	CallerName  string `long:"caller-name" env:"CALLER_NAME" description:"caller name in console mode"`
	APIBaseURL  string `long:"api" env:"API_BASE_URL" description:"base URL of the support API"`
	Persona     string `long:"persona" env:"PERSONA_FILE" description:"persona YAML file"`
}

// Apply overrides cfg with the flags that were set.
func (o *Options) Apply(cfg *config.Config) error {
	if o.RoomURL != "" {
		cfg.RoomURL = o.RoomURL
	}
	if o.APIBaseURL != "" {
		cfg.APIBaseURL = o.APIBaseURL
	}
	if o.Persona != "" && o.Persona != cfg.PersonaFile {
		p, err := config.LoadPersona(o.Persona)
		if err != nil {
			return err
		}
		cfg.PersonaFile, cfg.Persona = o.Persona, p
	}
	return cfg.Validate()
}

// Metadata is the console room metadata built from the caller flags.
func (o *Options) Metadata() map[string]string {
	md := map[string]string{}
	if o.CallerPhone != "" {
		md["caller_phone"] = o.CallerPhone
	}
	if o.CallerName != "" {
		md["caller_name"] = o.CallerName
	}
	return md
}
