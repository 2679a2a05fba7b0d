package systemd

import "context"

// FakeControl is an in-memory Control used by coordinator tests so they
// never shell out to a real systemctl.
type FakeControl struct {
	Active map[string]bool
	Starts []string
	Stops  []string
}

// NewFakeControl returns a FakeControl with no units active.
func NewFakeControl() *FakeControl {
	return &FakeControl{Active: make(map[string]bool)}
}

func (f *FakeControl) Start(ctx context.Context, unit string) error {
	f.Starts = append(f.Starts, unit)
	f.Active[unit] = true
	return nil
}

func (f *FakeControl) Stop(ctx context.Context, unit string) error {
	f.Stops = append(f.Stops, unit)
	f.Active[unit] = false
	return nil
}

func (f *FakeControl) IsActive(ctx context.Context, unit string) (bool, error) {
	return f.Active[unit], nil
}

func (f *FakeControl) DaemonReload(ctx context.Context) error {
	return nil
}
