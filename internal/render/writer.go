package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/turtacn/apswitch/pkg/consts"
	"github.com/turtacn/apswitch/pkg/logger"
	"github.com/turtacn/apswitch/pkg/protocol"
)

// Writer renders configs to the paths named in the daemon specs.
type Writer struct {
	daemons protocol.DaemonsConfig
}

func NewWriter(daemons protocol.DaemonsConfig) *Writer {
	return &Writer{daemons: daemons}
}

// Write renders kind for p and installs it atomically, returning the path
// written. For the access-point daemon the DAEMON_CONF pointer file is
// written as well. Repeating Write with the same profile leaves every file
// byte-identical.
func (w *Writer) Write(ctx context.Context, kind consts.DaemonKind, p protocol.NetworkProfile) (string, error) {
	body, err := Render(ctx, kind, p)
	if err != nil {
		return "", err
	}
	path := w.daemons.Spec(kind).ConfigPath

	switch kind {
	case consts.DhcpClient:
		current, err := readIfExists(path)
		if err != nil {
			return "", err
		}
		begin, end := blockMarkers(p.Interface)
		body = spliceBlock(current, body, begin, end)
	case consts.AccessPointDaemon:
		if w.daemons.APDefaultsFile != "" {
			if err := writeAtomic(w.daemons.APDefaultsFile, RenderAPDefaults(path), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", w.daemons.APDefaultsFile, err)
			}
		}
	}

	if err := writeAtomic(path, body, modeFor(kind)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	logger.Log.Debug("Render: config written", "kind", kind, "path", path, "bytes", len(body))
	return path, nil
}

// hostapd.conf carries the passphrase.
func modeFor(kind consts.DaemonKind) fs.FileMode {
	if kind == consts.AccessPointDaemon {
		return 0o600
	}
	return 0o644
}

// spliceBlock replaces the begin..end block in current with block, or
// appends block when current has none.
func spliceBlock(current, block []byte, begin, end string) []byte {
	stripped := stripBlock(current, begin, end)
	var out bytes.Buffer
	out.Write(stripped)
	if len(stripped) > 0 && !bytes.HasSuffix(stripped, []byte("\n")) {
		out.WriteByte('\n')
	}
	out.Write(block)
	return out.Bytes()
}

// stripBlock removes the begin..end block (inclusive, with its trailing
// newline) from current. Content without the block is returned unchanged.
func stripBlock(current []byte, begin, end string) []byte {
	start := bytes.Index(current, []byte(begin))
	if start < 0 {
		return current
	}
	rel := bytes.Index(current[start:], []byte(end))
	if rel < 0 {
		return current
	}
	stop := start + rel + len(end)
	if stop < len(current) && current[stop] == '\n' {
		stop++
	}
	out := make([]byte, 0, len(current)-(stop-start))
	out = append(out, current[:start]...)
	return append(out, current[stop:]...)
}

func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeAtomic writes to a temp file beside path and renames it over path so a
// daemon never reads a half-written config. An existing file keeps its mode.
func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Personal.AI order the ending
