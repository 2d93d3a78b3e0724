// Package identifiers allocates the opaque ids used for collections,
// miniatures and images.
//
// The three kinds are distinct types so they cannot be mixed up in code, but
// they are plain strings on disk and carry no marker of their kind.
package identifiers

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type CollectionID string

type MiniatureID string

type ImageID string

func NewCollectionID() CollectionID {
	return CollectionID(newID())
}

func NewMiniatureID() MiniatureID {
	return MiniatureID(newID())
}

func NewImageID() ImageID {
	return ImageID(newID())
}

func (id CollectionID) IsZero() bool { return id == "" }
func (id MiniatureID) IsZero() bool  { return id == "" }
func (id ImageID) IsZero() bool      { return id == "" }

func (id CollectionID) String() string { return string(id) }
func (id MiniatureID) String() string  { return string(id) }
func (id ImageID) String() string      { return string(id) }

var fallbackCounter atomic.Uint64

// newID returns a UUIDv7, whose leading 48 bits are the current Unix time in
// milliseconds. If the random source is unavailable it degrades to a
// "<unix-ms>-<counter>" string, still unique within the process.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		n := fallbackCounter.Add(1)

		return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(n, 36)
	}

	return id.String()
}
