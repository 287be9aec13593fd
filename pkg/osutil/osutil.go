// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil contains process and file helpers shared by the binaries.
package osutil

import (
	"os"
	"os/exec"
	"path/filepath"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
)

// Command returns an exec.Cmd that terminates with the parent process
// and runs in its own process group, so a hanging child tree can be
// killed as a whole.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	setSysProcAttr(cmd)
	return cmd
}

// KillPgroup kills the whole process group of cmd.
func KillPgroup(cmd *exec.Cmd) {
	killPgroup(cmd)
}

func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

func RemoveAll(dir string) error {
	return os.RemoveAll(dir)
}

// Abs returns the absolute path, or the path itself if it cannot be
// resolved (binaries chdir into scratch dirs, so relative paths go stale).
func Abs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
