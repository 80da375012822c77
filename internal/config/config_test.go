package config

import (
	"errors"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration must validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"typical", Config{SampleRate: 48000, ChannelCount: 2}, true},
		{"mono", Config{SampleRate: 16000, ChannelCount: 1}, true},
		{"zero rate", Config{SampleRate: 0, ChannelCount: 2}, false},
		{"negative rate", Config{SampleRate: -1, ChannelCount: 2}, false},
		{"zero channels", Config{SampleRate: 48000, ChannelCount: 0}, false},
		{"negative channels", Config{SampleRate: 48000, ChannelCount: -2}, false},
	}

	for _, c := range cases {
		err := c.cfg.Validate()
		if c.ok && err != nil {
			t.Fatalf("%s: expected valid, got %v", c.name, err)
		}
		if !c.ok {
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("%s: expected ErrInvalidConfiguration, got %v", c.name, err)
			}
		}
	}
}
