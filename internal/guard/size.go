package guard

import (
	"errors"
	"io/fs"
	"os"
)

// SizeGuard enforces the byte ceiling on existing files and planned writes.
type SizeGuard struct {
	max int64
}

// NewSizeGuard returns a SizeGuard with the given ceiling in bytes.
func NewSizeGuard(max int64) SizeGuard {
	return SizeGuard{max: max}
}

// Check inspects canonical, which must already have passed PathGuard.
// planned <= 0 means the write size is unknown or no write is planned.
func (g SizeGuard) Check(canonical string, planned int64) Decision {
	if planned > g.max {
		return Deny(ReasonFileTooLarge, "planned write of %d bytes exceeds the %d byte limit", planned, g.max)
	}
	fi, err := os.Lstat(canonical)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Allow()
		}
		log.Debug("lstat %s: %v", canonical, err)
		return Deny(ReasonInvalidPath, "file size could not be determined")
	}
	if fi.IsDir() {
		return Allow()
	}
	if fi.Size() > g.max {
		return Deny(ReasonFileTooLarge, "file is %d bytes, limit is %d", fi.Size(), g.max)
	}
	return Allow()
}

// Max returns the ceiling in bytes.
func (g SizeGuard) Max() int64 { return g.max }
