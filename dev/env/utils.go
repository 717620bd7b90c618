package devenv

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"jagriti-backend/lib/configutil"
)

const moduleName = "jagriti-backend"

// StateDirEnv moves the dev state directory out of the workspace.
const StateDirEnv = "JAGRITI_DEV_STATE"

// statePrefix marks a path as relative to the dev state directory.
const statePrefix = "<dev_state>"

func declaresModule(gomod []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(gomod))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "module" {
			return fields[1] == moduleName
		}
	}
	return false
}

// WorkspaceRoot walks up from the working directory to the directory whose
// go.mod declares this module.
func WorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		gomod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil && declaresModule(gomod) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// StateDir is $JAGRITI_DEV_STATE or <workspace>/dev/.state.
func StateDir() (string, error) {
	if dir := os.Getenv(StateDirEnv); dir != "" {
		return dir, nil
	}
	root, err := WorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state"), nil
}

func StatePath(name string) (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadStateConfig reads a json5 config (and its .local variant) from the
// dev state directory.
func ReadStateConfig[T any](name string) (T, error) {
	path, err := StatePath(name)
	if err != nil {
		var out T
		return out, err
	}
	return configutil.ReadConfig[T](path)
}

// ResolvePath expands a leading "<dev_state>" into the dev state directory,
// creating it. other paths are returned unchanged.
func ResolvePath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, statePrefix)
	if !ok {
		return path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimLeft(rest, `/\`)), nil
}
