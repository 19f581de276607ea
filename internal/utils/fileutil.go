package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

/**
 * Copy a folder tree onto destination, overwriting existing files
 * @param {string} source - Folder to copy from
 * @param {string} destination - Folder to copy into, created when missing
 * @returns {error} First read or write failure
 * @description
 * - Files only present in destination are kept
 * - Symlinks are recreated, not followed
 * - File modes follow the source
 */
func CopyFolder(source, destination string) error {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return err
	}
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destination, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(dest, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(dest)
			return os.Symlink(link, dest)
		default:
			return CopyFile(path, dest)
		}
	})
}

// CopyFile copies one regular file keeping its permissions.
func CopyFile(source, destination string) error {
	contents, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destination, contents, info.Mode().Perm())
}

// ChownTree applies uid/gid to root and everything below it; negative ids skip the walk.
func ChownTree(root string, uid, gid int) error {
	if uid < 0 && gid < 0 {
		return nil
	}
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := Chown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		return nil
	})
}
