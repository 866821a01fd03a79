package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "atoms"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// DefinitionCode is stamped on events that do not carry one.
	DefinitionCode string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks          Hooks
	enabled        bool
	channel        string
	definitionCode string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	kept := compactHooks(hooks)
	return &Emitter{
		hooks:          kept,
		enabled:        cfg.Enabled && len(kept) > 0,
		channel:        channel,
		definitionCode: strings.TrimSpace(cfg.DefinitionCode),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the default channel.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit applies defaults and forwards event to all hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.DefinitionCode) == "" && e.definitionCode != "" {
		event.DefinitionCode = e.definitionCode
	}
	return e.hooks.Notify(ctx, event)
}

func compactHooks(hooks Hooks) Hooks {
	var kept Hooks
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	return kept
}
