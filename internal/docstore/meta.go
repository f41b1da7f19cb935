package docstore

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Meta holds the fields the store assigns to every record. Entity types embed
// it by value so the fields serialise at the top level of each document.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

func (m *Meta) Base() *Meta {
	return m
}

// Document is satisfied by a pointer to any struct embedding Meta.
type Document[T any] interface {
	*T
	Base() *Meta
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns an identifier of the form <prefix>_<unix millis>_<9 base36 chars>.
func NewID(prefix string) string {
	var sb strings.Builder
	sb.Grow(9)
	for range 9 {
		sb.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), sb.String())
}
