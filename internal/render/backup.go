package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/turtacn/apswitch/pkg/consts"
	"github.com/turtacn/apswitch/pkg/logger"
)

// managedFiles lists every host file a Write may touch.
func (w *Writer) managedFiles() []string {
	files := []string{
		w.daemons.DhcpClient.ConfigPath,
		w.daemons.DnsDhcpServer.ConfigPath,
		w.daemons.AccessPoint.ConfigPath,
	}
	if w.daemons.APDefaultsFile != "" {
		files = append(files, w.daemons.APDefaultsFile)
	}
	return files
}

// Backup copies each managed file to <file>_original unless a backup is
// already there, so the first pristine copy survives repeated prepares.
// Files that do not exist are skipped.
func (w *Writer) Backup() error {
	for _, path := range w.managedFiles() {
		backup := path + consts.BackupSuffix
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Log.Debug("Backup: file not found, ignoring it", "path", path)
			continue
		}
		if _, err := os.Stat(backup); err == nil {
			logger.Log.Debug("Backup: found existing backup", "path", backup)
			continue
		}
		if err := copyFile(path, backup); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
		logger.Log.Info("Backup: created", "path", backup)
	}
	return nil
}

// Restore puts every backup back in place and removes it. A dhcpcd.conf that
// had no backup still loses its managed block for iface.
func (w *Writer) Restore(iface string) error {
	var errs []error
	for _, path := range w.managedFiles() {
		backup := path + consts.BackupSuffix
		if _, err := os.Stat(backup); err == nil {
			data, err := os.ReadFile(backup)
			if err == nil {
				err = writeAtomic(path, data, 0o644)
			}
			if err == nil {
				err = os.Remove(backup)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", path, err))
				continue
			}
			logger.Log.Info("Restore: restored backup", "path", path)
			continue
		}

		if path == w.daemons.DhcpClient.ConfigPath && iface != "" {
			current, err := readIfExists(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			begin, end := blockMarkers(iface)
			if stripped := stripBlock(current, begin, end); len(stripped) != len(current) {
				if err := writeAtomic(path, stripped, 0o644); err != nil {
					errs = append(errs, fmt.Errorf("strip %s: %w", path, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func copyFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeAtomic(dst, data, fi.Mode().Perm())
}

// Personal.AI order the ending
