package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Clone shallow-clones a git repository into dest.
func (r *Runner) Clone(ctx context.Context, url, dest string) error {
	_, err := r.Run(ctx, Exec("git", "clone", "--depth=1", url, dest))
	return err
}

// AppendLine appends line to the file at path unless a line with identical trimmed content
// is already present. It reports whether the file was (or, in dry-run, would be) changed.
func (r *Runner) AppendLine(path, line string) (bool, error) {
	line = strings.TrimSpace(line)
	present, err := containsLine(path, line)
	if err != nil {
		return false, err
	}
	if present {
		r.log.Debug("[DEBUG] %s already contains: %s\n", path, line)
		return false, nil
	}

	desc := fmt.Sprintf("append to %s: %s", path, line)
	if r.dryRun {
		r.log.Log("[dry-run] %s", desc)
		return true, nil
	}
	r.log.Log("Running: %s", desc)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("unable to open %s for appending: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return false, fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return true, nil
}

// WriteFileIfAbsent creates path with data. An existing file is never opened for writing,
// whatever its content. It reports whether the file was (or would be) created.
func (r *Runner) WriteFileIfAbsent(path string, data []byte, perm fs.FileMode) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		r.log.Debug("[DEBUG] %s exists, leaving it untouched\n", path)
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	desc := fmt.Sprintf("create %s (%d bytes)", path, len(data))
	if r.dryRun {
		r.log.Log("[dry-run] %s", desc)
		return true, nil
	}
	r.log.Log("Running: %s", desc)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	// O_EXCL keeps a file created between the stat and here from being clobbered.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, f.Close()
}

// RemoveAll deletes path and everything below it.
func (r *Runner) RemoveAll(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	desc := "remove " + path
	if r.dryRun {
		r.log.Log("[dry-run] %s", desc)
		return nil
	}
	r.log.Log("Running: %s", desc)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// DownloadAndExtract fetches the archive at url and installs its single top-level
// directory as target (a Go tarball's "go/" becomes target, whatever target is named).
// target must not exist yet; callers remove stale trees with RemoveAll first.
func (r *Runner) DownloadAndExtract(ctx context.Context, url, target string) error {
	desc := fmt.Sprintf("download %s and extract into %s", url, target)
	if r.dryRun {
		r.log.Log("[dry-run] %s", desc)
		return nil
	}
	r.log.Log("Running: %s", desc)

	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", parent, err)
	}

	tmp, err := os.MkdirTemp(parent, ".dev-bootstrap-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	archive := filepath.Join(tmp, archiveName(url))
	if err := r.downloadFile(ctx, url, archive); err != nil {
		return err
	}

	staging := filepath.Join(tmp, "tree")
	top, err := ExtractArchive(archive, staging)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", archive, err)
	}
	r.log.Debug("[DEBUG] Extracted %s to %s\n", archive, top)

	if err := os.Rename(top, target); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", top, target, err)
	}
	return nil
}

func containsLine(path, line string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == line {
			return true, nil
		}
	}
	return false, scanner.Err()
}
