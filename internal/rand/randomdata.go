// Package rand generates random fixtures: object ids, project and ref names.
package rand

import (
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"github.com/oneconcern/globalrefdb/pkg/model"
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return randBytes(n)
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(randLetterBytes(n))
}

// ObjectID returns a random, non-zero object id
func ObjectID() model.ObjectID {
	for {
		id := model.ObjectID(hex.EncodeToString(randBytes(model.ObjectIDLength / 2)))
		if !id.IsZero() {
			return id
		}
	}
}

// ProjectName returns a random project name
func ProjectName() string {
	return "project-" + LetterString(8)
}

// BranchName returns a random ref name under refs/heads
func BranchName() string {
	return "refs/heads/" + LetterString(10)
}

var (
	onceSource sync.Once
	rgen       *rand.Rand
	randMutex  sync.Mutex
)

func seed() {
	src := rand.NewSource(time.Now().UnixNano())
	rgen = rand.New(src) // #nosec
}

func randBytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

const letterBytes = "abcdefghijklmnopqrstuvwxyz0123456789"

func randLetterBytes(n int) []byte {
	buf := randBytes(n)
	for i, b := range buf {
		buf[i] = letterBytes[int(b)%len(letterBytes)]
	}
	return buf
}
