package httpserver

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario controls how simulated jobs progress.
type Scenario struct {
	// TotalLinks is the number of search results each job processes.
	TotalLinks int `yaml:"total-links"`
	// MCQsPerLink is added to mcqs_found for every processed link.
	MCQsPerLink int `yaml:"mcqs-per-link"`
	// StepInterval is how long one link takes.
	StepInterval time.Duration `yaml:"step-interval"`
	// FailTopics end in an error status after the first step. Matching is
	// case-insensitive.
	FailTopics []string `yaml:"fail-topics"`
	// RestartWindow is how long the browser stays down after a restart.
	RestartWindow time.Duration `yaml:"restart-window"`
}

// DefaultScenario processes 10 links at 3 MCQs each, one link per second.
func DefaultScenario() Scenario {
	return Scenario{
		TotalLinks:    10,
		MCQsPerLink:   3,
		StepInterval:  time.Second,
		RestartWindow: 8 * time.Second,
	}
}

// LoadScenario reads a YAML scenario file. Missing keys keep their
// defaults.
func LoadScenario(path string) (Scenario, error) {
	sc := DefaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate rejects scenarios that would never finish.
func (sc Scenario) Validate() error {
	if sc.TotalLinks <= 0 {
		return fmt.Errorf("total-links must be positive, got %d", sc.TotalLinks)
	}
	if sc.MCQsPerLink < 0 {
		return fmt.Errorf("mcqs-per-link must not be negative, got %d", sc.MCQsPerLink)
	}
	if sc.StepInterval <= 0 {
		return fmt.Errorf("step-interval must be positive, got %s", sc.StepInterval)
	}
	if sc.RestartWindow < 0 {
		return fmt.Errorf("restart-window must not be negative, got %s", sc.RestartWindow)
	}
	return nil
}

func (sc Scenario) fails(topic string) bool {
	for _, t := range sc.FailTopics {
		if strings.EqualFold(strings.TrimSpace(t), topic) {
			return true
		}
	}
	return false
}
