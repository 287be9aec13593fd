// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sys holds the operation registry the executor dispatches from:
// per-target lists of syscalls with their raw kernel numbers.
package sys

import (
	"github.com/XiaoyuHe/syzkaller/pkg/executor"
)

// Calls is the linux/amd64 operation registry. A program's call number is
// an index into this list.
var Calls = []executor.Syscall{
	{Name: "read", NR: 0},
	{Name: "write", NR: 1},
	{Name: "open", NR: 2},
	{Name: "close", NR: 3},
	{Name: "stat", NR: 4},
	{Name: "fstat", NR: 5},
	{Name: "lstat", NR: 6},
	{Name: "poll", NR: 7},
	{Name: "lseek", NR: 8},
	{Name: "mmap", NR: 9},
	{Name: "mprotect", NR: 10},
	{Name: "munmap", NR: 11},
	{Name: "brk", NR: 12},
	{Name: "ioctl", NR: 16},
	{Name: "pread64", NR: 17},
	{Name: "pwrite64", NR: 18},
	{Name: "readv", NR: 19},
	{Name: "writev", NR: 20},
	{Name: "access", NR: 21},
	{Name: "pipe", NR: 22},
	{Name: "select", NR: 23},
	{Name: "sched_yield", NR: 24},
	{Name: "mremap", NR: 25},
	{Name: "msync", NR: 26},
	{Name: "mincore", NR: 27},
	{Name: "madvise", NR: 28},
	{Name: "shmget", NR: 29},
	{Name: "shmat", NR: 30},
	{Name: "shmctl", NR: 31},
	{Name: "dup", NR: 32},
	{Name: "dup2", NR: 33},
	{Name: "nanosleep", NR: 35},
	{Name: "getitimer", NR: 36},
	{Name: "alarm", NR: 37},
	{Name: "setitimer", NR: 38},
	{Name: "getpid", NR: 39},
	{Name: "sendfile", NR: 40},
	{Name: "socket", NR: 41},
	{Name: "connect", NR: 42},
	{Name: "accept", NR: 43},
	{Name: "sendto", NR: 44},
	{Name: "recvfrom", NR: 45},
	{Name: "sendmsg", NR: 46},
	{Name: "recvmsg", NR: 47},
	{Name: "shutdown", NR: 48},
	{Name: "bind", NR: 49},
	{Name: "listen", NR: 50},
	{Name: "getsockname", NR: 51},
	{Name: "getpeername", NR: 52},
	{Name: "socketpair", NR: 53},
	{Name: "setsockopt", NR: 54},
	{Name: "getsockopt", NR: 55},
	{Name: "kill", NR: 62},
	{Name: "uname", NR: 63},
	{Name: "fcntl", NR: 72},
	{Name: "flock", NR: 73},
	{Name: "fsync", NR: 74},
	{Name: "fdatasync", NR: 75},
	{Name: "truncate", NR: 76},
	{Name: "ftruncate", NR: 77},
	{Name: "getdents", NR: 78},
	{Name: "getcwd", NR: 79},
	{Name: "chdir", NR: 80},
	{Name: "fchdir", NR: 81},
	{Name: "rename", NR: 82},
	{Name: "mkdir", NR: 83},
	{Name: "rmdir", NR: 84},
	{Name: "creat", NR: 85},
	{Name: "link", NR: 86},
	{Name: "unlink", NR: 87},
	{Name: "symlink", NR: 88},
	{Name: "readlink", NR: 89},
	{Name: "chmod", NR: 90},
	{Name: "fchmod", NR: 91},
	{Name: "chown", NR: 92},
	{Name: "fchown", NR: 93},
	{Name: "umask", NR: 95},
	{Name: "gettimeofday", NR: 96},
	{Name: "getuid", NR: 102},
	{Name: "getgid", NR: 104},
	{Name: "geteuid", NR: 107},
	{Name: "getegid", NR: 108},
	{Name: "openat", NR: 257},
	{Name: "mkdirat", NR: 258},
	{Name: "fchownat", NR: 260},
	{Name: "unlinkat", NR: 263},
	{Name: "renameat", NR: 264},
	{Name: "linkat", NR: 265},
	{Name: "symlinkat", NR: 266},
	{Name: "readlinkat", NR: 267},
	{Name: "fchmodat", NR: 268},
	{Name: "faccessat", NR: 269},
	{Name: "splice", NR: 275},
	{Name: "tee", NR: 276},
	{Name: "dup3", NR: 292},
	{Name: "pipe2", NR: 293},
	{Name: "memfd_create", NR: 319},
}
