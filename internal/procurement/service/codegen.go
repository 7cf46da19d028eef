package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/google/uuid"
)

// Document code prefixes.
const (
	CodePrefixPR = "PR"
	CodePrefixQR = "QR"
)

// SequentialCodeGenerator renders codes from an atomic counter:
//
//	PR -> PR-YYYY-NNNN   (counter per year)
//	QR -> QR-YYYYMM-NNNN (one running counter over all quotations)
//
// any other prefix renders PREFIX-NNNN.
type SequentialCodeGenerator struct {
	seq repository.Sequencer
	now func() time.Time
}

func NewSequentialCodeGenerator(seq repository.Sequencer) *SequentialCodeGenerator {
	return &SequentialCodeGenerator{seq: seq, now: time.Now}
}

// NextSequentialCode returns the next code for prefix.
func (g *SequentialCodeGenerator) NextSequentialCode(ctx context.Context, prefix string) (string, error) {
	now := g.now()
	switch prefix {
	case CodePrefixPR:
		year := now.Format("2006")
		n, err := g.seq.Next(ctx, "PR-"+year)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("PR-%s-%04d", year, n), nil
	case CodePrefixQR:
		n, err := g.seq.Next(ctx, "QR")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("QR-%s-%04d", now.Format("200601"), n), nil
	default:
		n, err := g.seq.Next(ctx, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-%04d", prefix, n), nil
	}
}

// NewID returns a 32-character record id.
func (g *SequentialCodeGenerator) NewID() string {
	return uuid.New().String()[:32]
}
