package service

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// ReceiptGenerator issues display receipts: a compact UTC timestamp plus a random suffix.
// Collisions are possible; the stores reject a duplicate receipt number.
type ReceiptGenerator struct {
	now    func() time.Time
	suffix func() int
}

func NewReceiptGenerator() *ReceiptGenerator {
	return &ReceiptGenerator{
		now:    time.Now,
		suffix: func() int { return rand.IntN(1000000) },
	}
}

func (g *ReceiptGenerator) Next() string {
	return fmt.Sprintf("%s.%d", g.now().UTC().Format("20060102150405"), g.suffix())
}
