//go:build unix

package fileutil

import "golang.org/x/sys/unix"

const oNoFollow = unix.O_NOFOLLOW | unix.O_CLOEXEC
