package statsd

import (
	"errors"
	"math"
)

var (
	errEmptyLine         = errors.New("empty line")
	errEmptyName         = errors.New("name zero len")
	errInvalidName       = errors.New("invalid character in name")
	errMissingValue      = errors.New("missing value")
	errMissingValueSep   = errors.New("missing value separator")
	errInvalidType       = errors.New("invalid type")
	errInvalidSampleRate = errors.New("invalid sample rate")
	errTrailingData      = errors.New("unexpected data after metric")
	errOverflow          = errors.New("overflow")
)

// lexer parses a single metric line. Fields are reset by run.
type lexer struct {
	input []byte
	pos   int
	m     ParsedMetric
	err   error
}

// eof is returned by next once the input is exhausted. It is only a marker,
// atEnd is authoritative because a literal 0x00 byte may appear in the input.
const eof byte = 0

type stateFn func(*lexer) stateFn

func (l *lexer) next() byte {
	if l.pos >= len(l.input) {
		return eof
	}
	b := l.input[l.pos]
	l.pos++
	return b
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return eof
	}
	return l.input[l.pos]
}

func (l *lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

func (l *lexer) fail(err error) stateFn {
	l.err = err
	return nil
}

func (l *lexer) run(input []byte) (ParsedMetric, error) {
	l.input = input
	l.pos = 0
	l.m = ParsedMetric{}
	l.err = nil

	if len(input) == 0 {
		return ParsedMetric{}, errEmptyLine
	}
	for state := lexName; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return ParsedMetric{}, l.err
	}
	return l.m, nil
}

func isNameChar(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9') || b == '.' || b == '_'
}

// lex the metric name up to the colon separator.
func lexName(l *lexer) stateFn {
	start := l.pos
	for !l.atEnd() && isNameChar(l.peek()) {
		l.pos++
	}
	if l.pos == start {
		if l.peek() == ':' {
			return l.fail(errEmptyName)
		}
		return l.fail(errInvalidName)
	}
	l.m.Name = string(l.input[start:l.pos])
	switch {
	case l.atEnd():
		return l.fail(errMissingValue)
	case l.next() != ':':
		return l.fail(errInvalidName)
	}
	return lexUint(errMissingValue, func(l *lexer, value uint64) stateFn {
		l.m.Value = value
		return lexAssert('|', errMissingValueSep, lexType)
	})
}

// lex the type, "c", "g" or "ms".
func lexType(l *lexer) stateFn {
	if l.atEnd() {
		return l.fail(errInvalidType)
	}
	switch l.next() {
	case 'c':
		l.m.Type = Counter
	case 'g':
		l.m.Type = Gauge
	case 'm':
		if l.atEnd() || l.next() != 's' {
			return l.fail(errInvalidType)
		}
		l.m.Type = Timer
	default:
		return l.fail(errInvalidType)
	}
	return lexSampleRate
}

// lex the optional "|@rate" suffix, which must end the line.
func lexSampleRate(l *lexer) stateFn {
	if l.atEnd() {
		return nil
	}
	if l.next() != '|' {
		return l.fail(errTrailingData)
	}
	return lexAssert('@', errInvalidSampleRate, lexUint(errInvalidSampleRate, func(l *lexer, rate uint64) stateFn {
		l.m.SampleRate = rate
		l.m.HasSampleRate = true
		if !l.atEnd() {
			return l.fail(errTrailingData)
		}
		return nil
	}))
}

func lexAssert(expected byte, err error, next stateFn) stateFn {
	return func(l *lexer) stateFn {
		if l.atEnd() || l.next() != expected {
			return l.fail(err)
		}
		return next
	}
}

// lexUint reads one or more decimal digits, failing with errEmpty if there are none.
func lexUint(errEmpty error, handler func(*lexer, uint64) stateFn) stateFn {
	return func(l *lexer) stateFn {
		var value uint64
		start := l.pos
		for !l.atEnd() {
			b := l.peek()
			if b < '0' || b > '9' {
				break
			}
			d := uint64(b - '0')
			if value > (math.MaxUint64-d)/10 {
				return l.fail(errOverflow)
			}
			value = value*10 + d
			l.pos++
		}
		if l.pos == start {
			return l.fail(errEmpty)
		}
		return handler(l, value)
	}
}
