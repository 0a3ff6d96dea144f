package config

import (
	"fmt"
	"sort"
	"time"

	"dario.cat/mergo"

	"github.com/nao1215/phoneprobe/internal/platform"
)

// Defaults holds settings applied to every platform unless the platform
// section sets them itself.
type Defaults struct {
	// UserAgent overrides the provider user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are sent with every HTTP request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MinDelay is the minimum delay between two probes.
	MinDelay time.Duration `yaml:"minDelay,omitempty"`

	// Jitter is the maximum random delay added to MinDelay.
	Jitter time.Duration `yaml:"jitter,omitempty"`

	// Cooldown is the pause after a Blocked page.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// MaxRetries bounds the retries of a Blocked candidate.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// Timeout bounds one page load.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// descriptor returns d as a partial platform descriptor.
func (d Defaults) descriptor() platform.Descriptor {
	return platform.Descriptor{
		UserAgent:  d.UserAgent,
		Headers:    d.Headers,
		MinDelay:   d.MinDelay,
		Jitter:     d.Jitter,
		Cooldown:   d.Cooldown,
		MaxRetries: d.MaxRetries,
		Timeout:    d.Timeout,
	}
}

// File represents the structure of the .phoneprobe configuration file.
type File struct {
	// Defaults apply to every platform.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Platforms maps platform names to descriptor overrides. Only the fields
	// set are changed. An unknown name defines a new platform, which must
	// then be complete.
	Platforms map[string]platform.Descriptor `yaml:"platforms,omitempty"`
}

// Registry returns the built-in platforms with the file's settings merged
// on top. A nil File returns the built-ins unchanged.
func (cf *File) Registry() (*platform.Registry, error) {
	r := platform.NewRegistry()
	if cf == nil {
		return r, nil
	}

	defaults := cf.Defaults.descriptor()
	seen := make(map[string]bool, len(cf.Platforms))

	names := make([]string, 0, len(cf.Platforms))
	for name := range cf.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		override := cf.Platforms[name]
		seen[name] = true
		// Platform settings win over defaults; defaults fill the rest.
		if err := mergo.Merge(&override, defaults); err != nil {
			return nil, fmt.Errorf("failed to apply defaults to platform %s: %w", name, err)
		}
		if err := r.Override(name, override); err != nil {
			return nil, fmt.Errorf("invalid configuration for platform %s: %w", name, err)
		}
	}

	for _, name := range r.Names() {
		if seen[name] {
			continue
		}
		if err := r.Override(name, defaults); err != nil {
			return nil, fmt.Errorf("invalid defaults for platform %s: %w", name, err)
		}
	}
	return r, nil
}
