package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeLLM returns canned responses in order, then repeats the last one.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	lastReq   LLMRequest
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return LLMResponse{}, errors.New("fakeLLM: no responses configured")
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return LLMResponse{Text: f.responses[idx]}, nil
}

// flakyLLM fails the first N calls, then answers.
type flakyLLM struct {
	mu       sync.Mutex
	failures int
	response string
	calls    int
}

func (f *flakyLLM) Complete(context.Context, LLMRequest) (LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return LLMResponse{}, errors.New("flakyLLM: transient failure")
	}
	return LLMResponse{Text: f.response}, nil
}

// failingLLM fails the test if invoked; used to prove bypass paths.
type failingLLM struct {
	fail func(format string, args ...any)
}

func (f *failingLLM) Complete(context.Context, LLMRequest) (LLMResponse, error) {
	f.fail("LLM was called on a path that must bypass it")
	return LLMResponse{}, errors.New("unexpected call")
}

// fakeTenantStore serves fixed profiles by id.
type fakeTenantStore struct {
	profiles map[string]*TenantProfile
}

func (f *fakeTenantStore) GetProfile(_ context.Context, tenantID string) (*TenantProfile, error) {
	p, ok := f.profiles[tenantID]
	if !ok {
		return nil, errors.New("unknown tenant")
	}
	return p, nil
}

// memoryAuditStore collects audit entries in memory.
type memoryAuditStore struct {
	mu      sync.Mutex
	entries []ResponseAuditLog
}

func (m *memoryAuditStore) Append(_ context.Context, entry *ResponseAuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryAuditStore) Query(_ context.Context, filter AuditFilter) ([]ResponseAuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ResponseAuditLog
	for _, entry := range m.entries {
		if filter.TenantID != "" && entry.TenantID != filter.TenantID {
			continue
		}
		if filter.ConversationID != "" && entry.ConversationID != filter.ConversationID {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func hotelProfile() *TenantProfile {
	return &TenantProfile{
		ID:   "tenant-1",
		Name: "Harbor View Hotel",
		Services: []Service{
			{Name: "Airport Shuttle", Category: "CONCIERGE", Available: true},
			{Name: "City Walking Tour", Category: "LOCAL_TOURS", Available: true},
		},
		MenuItems: []MenuItem{
			{Name: "Sparkling Water", Category: "FOOD_BEVERAGE", Available: true},
			{Name: "Club Sandwich", Category: "FOOD_BEVERAGE", Available: true},
		},
		RequestItems: []string{"towels", "extra pillows"},
		ConfigSources: []ConfigSource{
			{Type: "wifi_info", Content: "Network: Guest, Password: Welcome123", Priority: 10},
			{Type: "check_times", Content: "Check-in 3 PM, check-out 11 AM", Priority: 8},
			{Type: "policies", Content: "No smoking indoors.", Priority: 5},
		},
		BusinessHoursStart: 0,
		BusinessHoursEnd:   24,
	}
}

func spaProfile() *TenantProfile {
	p := hotelProfile()
	p.Services = append(p.Services, Service{Name: "Deep Tissue Massage", Category: "MASSAGE", Available: true})
	return p
}

func fixedTime() time.Time {
	return time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
}
