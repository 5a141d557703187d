package gpio

import (
	"context"
	"errors"
	"testing"
)

func TestFakePinReadLevel(t *testing.T) {
	f := NewFakePin(5, true, false, true)
	ctx := context.Background()

	want := []bool{true, false, true, true}
	for i, w := range want {
		got, err := f.ReadLevel(ctx)
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}
	if f.ReadCount() != 4 {
		t.Errorf("ReadCount: got %d, want 4", f.ReadCount())
	}
}

func TestFakePinNoLevels(t *testing.T) {
	f := NewFakePin(1)

	_, err := f.ReadLevel(context.Background())
	var readErr *HardwareReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected HardwareReadError, got %v", err)
	}
	if readErr.Pin != 1 {
		t.Errorf("Pin: got %d, want 1", readErr.Pin)
	}
}

func TestFakePinReadError(t *testing.T) {
	cause := errors.New("bus fault")
	f := NewFakePin(3, true)
	f.SetReadError(cause)

	_, err := f.ReadLevel(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	var readErr *HardwareReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected HardwareReadError, got %T", err)
	}
}

func TestFakePinCancelledContext(t *testing.T) {
	f := NewFakePin(3, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.ReadLevel(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFakePinConfigure(t *testing.T) {
	f := NewFakePin(2, true)

	if err := f.Configure(Input, PullNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Configure(Input, PullNone); err != nil {
		t.Fatalf("second configure: unexpected error: %v", err)
	}
	if f.Direction != Input || f.Pull != PullNone {
		t.Errorf("got (%v, %v), want (INPUT, NONE)", f.Direction, f.Pull)
	}
	if f.Configured != 2 {
		t.Errorf("Configured: got %d, want 2", f.Configured)
	}
}

func TestFakePinConfigureError(t *testing.T) {
	f := NewFakePin(2)
	f.ConfigError = errors.New("no device at 0x20")

	err := f.Configure(Input, PullUp)
	var cfgErr *HardwareConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected HardwareConfigError, got %v", err)
	}
	if f.Configured != 0 {
		t.Errorf("Configured: got %d, want 0", f.Configured)
	}
}

func TestFakeChipClaimsOnce(t *testing.T) {
	c := NewFakeChip(NewFakePin(1, true), NewFakePin(2, false))

	if _, err := c.Pin(1); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := c.Pin(1); err == nil {
		t.Error("expected error claiming pin 1 twice")
	}
	if _, err := c.Pin(9); err == nil {
		t.Error("expected error for unknown pin")
	}
	if err := c.Close(); err != nil || !c.Closed {
		t.Errorf("Close: err=%v closed=%v", err, c.Closed)
	}
}

func TestParsePull(t *testing.T) {
	tests := []struct {
		in      string
		want    Pull
		wantErr bool
	}{
		{"UP", PullUp, false},
		{"up", PullUp, false},
		{" Down ", PullDown, false},
		{"NONE", PullNone, false},
		{"", PullNone, true},
		{"OFF", PullNone, true},
		{"PULL_UP", PullNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePull(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnumStrings(t *testing.T) {
	if Input.String() != "INPUT" || Output.String() != "OUTPUT" {
		t.Errorf("direction strings: %s %s", Input, Output)
	}
	if PullUp.String() != "UP" || PullDown.String() != "DOWN" || PullNone.String() != "NONE" {
		t.Errorf("pull strings: %s %s %s", PullUp, PullDown, PullNone)
	}
}

func TestFakeChipLiteral(t *testing.T) {
	c := &FakeChip{Pins: map[int]*FakePin{3: NewFakePin(3, true)}}

	if _, err := c.Pin(3); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if _, err := c.Pin(3); err == nil {
		t.Error("expected error claiming pin twice")
	}
}
