package api

import (
	"errors"
	"fmt"
	"strings"
)

// VoiceName is a prebuilt voice of the speech model.
type VoiceName string

const (
	Kore   VoiceName = "Kore"
	Puck   VoiceName = "Puck"
	Charon VoiceName = "Charon"
	Fenrir VoiceName = "Fenrir"
	Zephyr VoiceName = "Zephyr"
)

// DefaultVoice is selected when none is given.
const DefaultVoice = Kore

// Gender of a voice persona.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// VoiceOption describes a selectable voice.
type VoiceOption struct {
	ID          VoiceName
	Label       string
	Description string
	Gender      Gender
}

var voiceOptions = []VoiceOption{
	{ID: Kore, Label: "Kore", Description: "Calm & Soothing", Gender: Female},
	{ID: Puck, Label: "Puck", Description: "Energetic & Clear", Gender: Male},
	{ID: Charon, Label: "Charon", Description: "Deep & Authoritative", Gender: Male},
	{ID: Fenrir, Label: "Fenrir", Description: "Strong & Resonant", Gender: Male},
	{ID: Zephyr, Label: "Zephyr", Description: "Gentle & Airy", Gender: Female},
}

// ErrUnknownVoice is returned by ParseVoice for names outside the catalogue.
var ErrUnknownVoice = errors.New("unknown voice")

// Voices returns the voice catalogue in display order.
func Voices() []VoiceOption {
	out := make([]VoiceOption, len(voiceOptions))
	copy(out, voiceOptions)
	return out
}

// ParseVoice matches name against the catalogue, ignoring case.
func ParseVoice(name string) (VoiceName, error) {
	name = strings.TrimSpace(name)
	for _, v := range voiceOptions {
		if strings.EqualFold(string(v.ID), name) {
			return v.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVoice, name)
}

// Valid reports whether v is in the catalogue.
func (v VoiceName) Valid() bool {
	_, ok := LookupVoice(v)
	return ok
}

// LookupVoice returns the catalogue entry for v.
func LookupVoice(v VoiceName) (VoiceOption, bool) {
	for _, o := range voiceOptions {
		if o.ID == v {
			return o, true
		}
	}
	return VoiceOption{}, false
}

// VoiceIndex returns the position of v in the catalogue, or -1.
func VoiceIndex(v VoiceName) int {
	for i, o := range voiceOptions {
		if o.ID == v {
			return i
		}
	}
	return -1
}
