package generator

import (
	"fmt"
	"strings"

	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

const (
	// DefaultCharset is the uppercase alphanumerics minus the look-alikes 0, O, 1 and I.
	DefaultCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	DefaultBodyLength = 8
	MinBodyLength     = 1
	MaxBodyLength     = 16

	// Separator joins a non-empty prefix to the random body.
	Separator = "_"

	// attemptsPerCode bounds total draws to count*attemptsPerCode.
	attemptsPerCode = 50

	exhaustedMessage = "reduce count or lengthen code body"
)

// Synthesizer produces batches of random, batch-unique code strings.
type Synthesizer struct {
	charset    []byte
	bodyLength int
	rng        RandomSource
}

// NewSynthesizer validates the alphabet and body length and returns a synthesizer
// drawing from rng. An empty charset or zero body length selects the defaults.
func NewSynthesizer(charset string, bodyLength int, rng RandomSource) (*Synthesizer, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	if bodyLength == 0 {
		bodyLength = DefaultBodyLength
	}
	if bodyLength < MinBodyLength || bodyLength > MaxBodyLength {
		return nil, fmt.Errorf("code body length must be between %d and %d, got %d", MinBodyLength, MaxBodyLength, bodyLength)
	}

	seen := make(map[byte]struct{}, len(charset))
	for i := 0; i < len(charset); i++ {
		c := charset[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return nil, fmt.Errorf("code charset may only contain A-Z and 0-9, got %q", c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("code charset contains duplicate character %q", c)
		}
		seen[c] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, fmt.Errorf("code charset needs at least 2 characters")
	}
	if rng == nil {
		rng = NewRandomSource()
	}

	return &Synthesizer{
		charset:    []byte(charset),
		bodyLength: bodyLength,
		rng:        rng,
	}, nil
}

// BodyLength returns the number of random characters per code.
func (s *Synthesizer) BodyLength() int {
	return s.bodyLength
}

// CodeLength returns the length of a code assembled with the given affixes.
func (s *Synthesizer) CodeLength(prefix, suffix string) int {
	n := len(prefix) + s.bodyLength + len(suffix)
	if prefix != "" {
		n += len(Separator)
	}
	return n
}

// Synthesize returns count distinct codes of the form prefix_BODYsuffix. Either
// every code is produced or GenerationExhausted is returned with no output.
func (s *Synthesizer) Synthesize(prefix, suffix string, count int) ([]string, error) {
	return s.synthesize(prefix, suffix, count, nil)
}

// synthesize draws count codes that are unique in the batch and absent from
// exclude. Draws that collide count against the attempt budget.
func (s *Synthesizer) synthesize(prefix, suffix string, count int, exclude map[string]struct{}) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	if !s.keyspaceFits(count + len(exclude)) {
		return nil, apperrors.GenerationExhausted(exhaustedMessage)
	}

	codes := make([]string, 0, count)
	taken := make(map[string]struct{}, count)
	budget := count * attemptsPerCode

	for attempts := 0; len(codes) < count; attempts++ {
		if attempts >= budget {
			return nil, apperrors.GenerationExhausted(exhaustedMessage)
		}
		code := s.assemble(prefix, suffix)
		if _, dup := taken[code]; dup {
			continue
		}
		if _, dup := exclude[code]; dup {
			continue
		}
		taken[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *Synthesizer) assemble(prefix, suffix string) string {
	var b strings.Builder
	b.Grow(s.CodeLength(prefix, suffix))
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteString(Separator)
	}
	for i := 0; i < s.bodyLength; i++ {
		b.WriteByte(s.charset[s.rng.IntN(len(s.charset))])
	}
	b.WriteString(suffix)
	return b.String()
}

// keyspaceFits reports whether |charset|^bodyLength >= need without overflowing.
func (s *Synthesizer) keyspaceFits(need int) bool {
	space := 1
	for i := 0; i < s.bodyLength; i++ {
		space *= len(s.charset)
		if space >= need {
			return true
		}
	}
	return space >= need
}
