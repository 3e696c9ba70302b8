package detector

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// HubPort is a downstream port on a USB hub, addressed the way uhubctl does
type HubPort struct {
	Hub  string // uhubctl -l location, e.g. "1-2"
	Port int    // uhubctl -p port
}

func (h HubPort) String() string {
	return fmt.Sprintf("%s:%d", h.Hub, h.Port)
}

// HubPortFor derives the hub and port a device is attached to from its path
func HubPortFor(info Info) (HubPort, error) {
	if len(info.Path) == 0 {
		return HubPort{}, ErrNoPortPath
	}

	last := len(info.Path) - 1
	hub := strconv.Itoa(info.Bus)
	if last > 0 {
		parts := make([]string, last)
		for n, p := range info.Path[:last] {
			parts[n] = strconv.Itoa(p)
		}
		hub += "-" + strings.Join(parts, ".")
	}

	return HubPort{Hub: hub, Port: info.Path[last]}, nil
}

// ParseHubPort parses "location:port", e.g. "1-2:3"
func ParseHubPort(s string) (HubPort, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return HubPort{}, fmt.Errorf("invalid hub port %q: want location:port", s)
	}
	port, err := strconv.Atoi(s[i+1:])
	if err != nil || port <= 0 {
		return HubPort{}, fmt.Errorf("invalid hub port number in %q", s)
	}
	return HubPort{Hub: s[:i], Port: port}, nil
}

// PowerCycler switches a hub port off and on with uhubctl
type PowerCycler struct {
	path   string
	settle time.Duration
	logger *slog.Logger
}

// NewPowerCycler locates uhubctl on PATH
func NewPowerCycler(logger *slog.Logger) (*PowerCycler, error) {
	path, err := exec.LookPath("uhubctl")
	if err != nil {
		return nil, fmt.Errorf("uhubctl not available: %w", err)
	}
	return &PowerCycler{path: path, settle: powerSettle, logger: logger}, nil
}

// Cycle turns the port off, waits, turns it back on and waits for the
// device to enumerate again
func (p *PowerCycler) Cycle(ctx context.Context, hp HubPort) error {
	p.logger.Info("power cycling detector port", slog.String("hub", hp.Hub), slog.Int("port", hp.Port))

	for _, action := range []string{"off", "on"} {
		if err := p.run(ctx, hp, action); err != nil {
			return err
		}
		if err := sleep(ctx, p.settle); err != nil {
			return err
		}
	}
	return nil
}

func (p *PowerCycler) run(ctx context.Context, hp HubPort, action string) error {
	cmd := exec.CommandContext(ctx, p.path, "-l", hp.Hub, "-p", strconv.Itoa(hp.Port), "-a", action)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("uhubctl %s %s failed: %w: %s", action, hp, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
