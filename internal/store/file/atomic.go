package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

const (
	backupSuffix = ".bak"
	filePerm     = 0o644
	dirPerm      = 0o755
)

// encodeJSON renders v the way every data file is written: two-space indent,
// HTML left unescaped so descriptions stay readable.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeAtomic replaces path with data. A reader of path only ever sees the
// previous or the new content in full. When backup is set the previous
// content is kept at path+".bak".
func writeAtomic(path string, data []byte, backup bool, log logger.Logger) error {
	if len(data) == 0 {
		return fmt.Errorf("refusing to write empty file %s: %w", filepath.Base(path), domain.ErrPersistence)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create data dir: %w: %w", domain.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", domain.ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		utils.Close(tmp)
		return fmt.Errorf("write temp file: %w: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		utils.Close(tmp)
		return fmt.Errorf("sync temp file: %w: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w: %w", domain.ErrPersistence, err)
	}

	if err := verifyNonEmpty(tmpPath); err != nil {
		return fmt.Errorf("verify temp file: %w: %w", domain.ErrPersistence, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		log.Debug("chmod temp file failed", logger.String("path", tmpPath), logger.Error(err))
	}

	if backup {
		if err := rotateBackup(path); err != nil {
			log.Warn("backup rotation failed, continuing", logger.String("path", path), logger.Error(err))
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w: %w", filepath.Base(path), domain.ErrPersistence, err)
	}
	committed = true

	if err := verifyNonEmpty(path); err != nil {
		return fmt.Errorf("verify %s: %w: %w", filepath.Base(path), domain.ErrPersistence, err)
	}
	return nil
}

// rotateBackup points path.bak at the current content of path. A hard link
// is used so path never disappears; filesystems without links get a copy.
func rotateBackup(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	bak := path + backupSuffix
	staged := bak + ".tmp"
	_ = os.Remove(staged)

	if err := os.Link(path, staged); err != nil {
		if err := copyFile(path, staged); err != nil {
			_ = os.Remove(staged)
			return err
		}
	}
	if err := os.Rename(staged, bak); err != nil {
		_ = os.Remove(staged)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer utils.Close(in)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		utils.Close(out)
		return err
	}
	if err := out.Sync(); err != nil {
		utils.Close(out)
		return err
	}
	return out.Close()
}

func verifyNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("file is empty")
	}
	return nil
}
