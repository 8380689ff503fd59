//go:build js && wasm

package lockfile

import "os"

// No advisory locks under wasm; a single process owns the files.
func flockExclusive(*os.File, bool) error { return nil }

func funlock(*os.File) error { return nil }
