package test

import (
	"os"
	"path/filepath"
)

func LoadFixture(relativePath string) ([]byte, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(filepath.Join(wd, relativePath))
}
