// Package marker carries the orchestration state from one apswitch
// invocation to the next and keeps two invocations off the same interface.
package marker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/turtacn/apswitch/pkg/consts"
	"github.com/turtacn/apswitch/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Record is the persisted SystemState for one interface.
type Record struct {
	Interface          string              `yaml:"interface"`
	State              consts.NetworkState `yaml:"state"`
	DhcpClientPrepared bool                `yaml:"dhcp_client_prepared"`
	APActive           bool                `yaml:"ap_active"`
	UpdatedAt          time.Time           `yaml:"updated_at"`
}

// Store reads and writes marker files under one directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(iface string) string {
	return filepath.Join(s.dir, iface+".state")
}

// Load returns the record for iface. ok is false when no marker exists,
// which callers must read as IDLE rather than guess at the host's state.
func (s *Store) Load(iface string) (rec Record, ok bool, err error) {
	data, err := os.ReadFile(s.path(iface))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("marker %s: %w", s.path(iface), err)
	}
	if rec.Interface != iface {
		return Record{}, false, fmt.Errorf("marker %s names interface %q", s.path(iface), rec.Interface)
	}
	return rec, true, nil
}

// Save writes rec atomically. An IDLE record removes the marker instead.
func (s *Store) Save(rec Record) error {
	if rec.State == consts.StateIdle {
		return s.Clear(rec.Interface)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(&rec)
	if err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.tmp-%d", s.path(rec.Interface), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(rec.Interface)); err != nil {
		os.Remove(tmp)
		return err
	}
	logger.Log.Debug("Marker: saved", "interface", rec.Interface, "state", rec.State)
	return nil
}

// Clear removes the marker for iface. Missing markers are fine.
func (s *Store) Clear(iface string) error {
	err := os.Remove(s.path(iface))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Personal.AI order the ending
