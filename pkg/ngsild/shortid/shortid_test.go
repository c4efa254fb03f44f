package shortid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestFromUUID(t *testing.T) {
	is := is.New(t)

	is.Equal(FromUUID(uuid.Nil), "AAAAAAAAAAAAAAAAAAAAAA")

	u := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	is.Equal(FromUUID(u), "_____________________w")
}

func TestNewLengthAndUniqueness(t *testing.T) {
	is := is.New(t)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New()
		is.Equal(len(id), 22)
		is.True(!seen[id])
		seen[id] = true
	}
}
