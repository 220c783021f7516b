package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator issues opaque record identifiers and prefixed external
// reference tokens (PAY..., TXN..., RFD...).
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

func (*UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// NewRef builds an external-facing reference: prefix, millisecond timestamp,
// and an 8-character uuid tail, e.g. PAY1717680000000A1B2C3D4.
func (*UUIDGenerator) NewRef(prefix string) string {
	tail := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s%d%s", prefix, time.Now().UnixMilli(), tail)
}
