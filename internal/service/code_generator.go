package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// CodeGenerator draws 6-digit verification codes uniformly from
// [100000, 999999].
type CodeGenerator struct {
	reader io.Reader
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{reader: rand.Reader}
}

func (g *CodeGenerator) Generate() (string, error) {
	num, err := rand.Int(g.reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", num.Int64()+codeFloor), nil
}
