package eventloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Timer wraps a Linux timerfd: a socket-like fd the event loop can poll
// alongside DHCPv6/ICMPv6 sockets, used for the per-slave RA interval
// (spec §4.3) and matching the original's timerfd-based design (spec §9,
// "mixed ownership of timers and sockets").
type Timer struct {
	fd int
}

// NewTimer creates a disarmed monotonic timerfd.
func NewTimer() (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventloop: timerfd_create: %w", err)
	}
	return &Timer{fd: fd}, nil
}

// FD returns the underlying file descriptor for registration with a Loop.
func (t *Timer) FD() int { return t.fd }

// Arm schedules a single one-shot expiration after d.
func (t *Timer) Arm(d time.Duration) error {
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if spec.Value.Sec == 0 && spec.Value.Nsec == 0 {
		// timerfd treats an all-zero value as "disarm"; round up so a
		// zero-delay rearm still fires promptly.
		spec.Value.Nsec = 1
	}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("eventloop: timerfd_settime: %w", err)
	}
	return nil
}

// Drain reads (and discards) the expiration counter, required after
// every readiness notification before rearming, matching the original's
// `read(event->socket, &overrun, sizeof(overrun))`.
func (t *Timer) Drain() {
	var buf [8]byte
	_, _ = unix.Read(t.fd, buf[:])
}

// Close releases the timerfd.
func (t *Timer) Close() error {
	return unix.Close(t.fd)
}
