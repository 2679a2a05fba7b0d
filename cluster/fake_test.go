package cluster

import "testing"

func TestFakeMembershipNonLeaderCannotWritePeerData(t *testing.T) {
	m := NewFakeMembership("chopsticks/1", false)
	if err := m.SetPeerData(KeyTestState, "running"); err == nil {
		t.Fatal("expected non-leader SetPeerData to fail")
	}
}

func TestFakeMembershipLeaderCanWriteAndReadPeerData(t *testing.T) {
	m := NewFakeMembership("chopsticks/0", true)
	if err := m.SetPeerData(KeyTestState, "running"); err != nil {
		t.Fatalf("SetPeerData: %v", err)
	}

	v, ok := m.GetPeerData(KeyTestState)
	if !ok || v != "running" {
		t.Fatalf("GetPeerData() = (%q, %v), want (running, true)", v, ok)
	}
}

func TestFakeMembershipEmitAndConsumeEvents(t *testing.T) {
	m := NewFakeMembership("chopsticks/0", true)
	m.Emit(EventInstall)
	m.Emit(EventStart)

	if got := <-m.Events(); got != EventInstall {
		t.Fatalf("first event = %v, want %v", got, EventInstall)
	}
	if got := <-m.Events(); got != EventStart {
		t.Fatalf("second event = %v, want %v", got, EventStart)
	}
}

func TestFakeMembershipPrivateAddressError(t *testing.T) {
	m := NewFakeMembership("chopsticks/0", true)
	m.SetAddress("")
	if _, err := m.PrivateAddress(); err == nil {
		t.Fatal("expected error for unresolved address")
	}
}
