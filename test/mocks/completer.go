// Package mocks provides hand-written test doubles shared across packages.
package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrMockLLM is returned by MockCompleter for failing rules.
var ErrMockLLM = errors.New("mock LLM error")

// CompleterCall records one call to MockCompleter.
type CompleterCall struct {
	System string
	Prompt string
}

// MockCompleter answers prompts from substring-keyed responses.
// Rules are checked in insertion order; the first whose key is contained in the prompt wins.
type MockCompleter struct {
	mu         sync.Mutex
	keys       []string
	responses  map[string]string
	failures   map[string]error
	Default    string
	ShouldFail bool
	Calls      []CompleterCall
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// SetResponse returns response for prompts containing key.
func (m *MockCompleter) SetResponse(key, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addKey(key)
	m.responses[key] = response
}

// FailOn makes prompts containing key fail with ErrMockLLM.
func (m *MockCompleter) FailOn(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addKey(key)
	m.failures[key] = ErrMockLLM
}

func (m *MockCompleter) addKey(key string) {
	for _, k := range m.keys {
		if k == key {
			return
		}
	}
	m.keys = append(m.keys, key)
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, CompleterCall{System: system, Prompt: prompt})

	if m.ShouldFail {
		return "", ErrMockLLM
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, key := range m.keys {
		if !strings.Contains(prompt, key) {
			continue
		}
		if err, ok := m.failures[key]; ok {
			return "", err
		}
		return m.responses[key], nil
	}
	return m.Default, nil
}

// CallCount returns the number of calls made so far.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsContaining counts calls whose prompt contains s.
func (m *MockCompleter) CallsContaining(s string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if strings.Contains(c.Prompt, s) {
			n++
		}
	}
	return n
}
