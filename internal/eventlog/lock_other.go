//go:build !unix

package eventlog

import "os"

// Without flock only the in-process path lock applies.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }
