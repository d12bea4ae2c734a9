package utils

import (
	"fmt"
	"os"
)

// IsDir checks if supplied path is real directory
func IsDir(path string) (bool, error) {
	s, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return s.IsDir(), nil
}

// IsFile checks if supplied path is real file
func IsFile(path string) (bool, error) {
	s, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return !s.IsDir(), nil
}

// EnsureDir creates the directory if it does not exist yet
func EnsureDir(path string) error {
	ok, err := IsDir(path)
	if err == nil {
		if !ok {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0755)
}
