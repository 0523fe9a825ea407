package logparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Attribution decides which raw lines belong to a user.
type Attribution string

const (
	// AttributeSubstring attributes any line mentioning the user id.
	AttributeSubstring Attribution = "substring"
	// AttributeTagged attributes only lines carrying "[user: <id>]".
	AttributeTagged Attribution = "tagged"
)

// Config is the immutable description of a platform's log conventions.
type Config struct {
	// KnownModules is the declaration order used when reporting modules.
	KnownModules []string
	// InputMarker starts every new question block.
	InputMarker string
	// FallbackResponse is the agent's "I don't know" answer.
	FallbackResponse string
	// PrimaryModule wins the ResponseModule column when present.
	PrimaryModule string
	// DefaultModule is reported when PrimaryModule did not take part.
	DefaultModule string
	Attribution   Attribution
}

// DefaultConfig returns the conventions of the Unitex/ChatScript platform.
func DefaultConfig() Config {
	return Config{
		KnownModules:     []string{"Unitex", "ChatScript", "SIREN", "JASON"},
		InputMarker:      "Unitex input: ",
		FallbackResponse: "Hey, sorry. What were we talking about?",
		PrimaryModule:    "SIREN",
		DefaultModule:    "ChatScript",
		Attribution:      AttributeSubstring,
	}
}

// Validate reports every inconsistency in c at once.
func (c Config) Validate() error {
	var errs []error
	if c.InputMarker == "" {
		errs = append(errs, errors.New("input marker is empty"))
	}
	if c.FallbackResponse == "" {
		errs = append(errs, errors.New("fallback response is empty"))
	}
	seen := make(map[string]bool, len(c.KnownModules))
	for _, m := range c.KnownModules {
		if m == "" {
			errs = append(errs, errors.New("known modules contain an empty name"))
			continue
		}
		if seen[m] {
			errs = append(errs, fmt.Errorf("module %q declared twice", m))
		}
		seen[m] = true
	}
	if c.PrimaryModule == "" || c.DefaultModule == "" {
		errs = append(errs, errors.New("primary and default module must be set"))
	}
	switch c.Attribution {
	case "", AttributeSubstring, AttributeTagged:
	default:
		errs = append(errs, fmt.Errorf("attribution %q is invalid; valid values: substring, tagged", c.Attribution))
	}
	return errors.Join(errs...)
}

// userPattern matches "[user: <id>]" immediately followed by the input marker.
// Spaces inside the marker match any single whitespace character.
func (c Config) userPattern() *regexp.Regexp {
	parts := strings.Split(c.InputMarker, " ")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\[user:\s(.+)\]\s` + strings.Join(parts, `\s`))
}

func userTag(user string) string {
	return "[user: " + user + "]"
}
