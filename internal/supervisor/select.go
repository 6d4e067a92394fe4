package supervisor

import (
	"context"
	"fmt"

	"github.com/turtacn/apswitch/pkg/logger"
)

// SelectBackend picks the service manager named in config. "auto" prefers
// systemd when the host runs it and falls back to initscripts. The returned
// close func releases any connection held by the backend.
func SelectBackend(ctx context.Context, name string, runner Runner) (Backend, func(), error) {
	noop := func() {}
	switch name {
	case "systemd":
		sd, err := NewSystemd(ctx)
		if err != nil {
			return nil, noop, err
		}
		return sd, sd.Close, nil
	case "initscripts":
		return NewInitScripts(runner), noop, nil
	case "", "auto":
		if SystemdAvailable() {
			sd, err := NewSystemd(ctx)
			if err == nil {
				return sd, sd.Close, nil
			}
			logger.Log.Warn("Supervisor: systemd detected but bus unavailable, using initscripts", "err", err)
		}
		return NewInitScripts(runner), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown service manager %q", name)
}

// Personal.AI order the ending
