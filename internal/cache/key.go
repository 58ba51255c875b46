package cache

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Key hashes a method name plus its positional and keyword arguments into a
// fixed-size, comparable cache key (spec §4.3: "keys are computed as the
// tuple of (method-name, positional args, keyword args)"). Keyword order
// must not affect the key, so kwargs is sorted by name before hashing.
func Key(method string, args []any, kwargs map[string]any) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key length, and we pass nil.
		panic(fmt.Sprintf("cache: blake2b.New256: %v", err))
	}

	h.Write([]byte(method))
	h.Write([]byte{0})

	for _, a := range args {
		fmt.Fprintf(h, "%v", a)
		h.Write([]byte{0})
	}

	h.Write([]byte{0})

	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{'='})
		fmt.Fprintf(h, "%v", kwargs[name])
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
