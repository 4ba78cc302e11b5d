package chapters

import (
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/logger"
)

// MaxSlots is the number of pattern slots a PatternSet holds.
const MaxSlots = 9

const DefaultMatchTimeout = 2 * time.Second

var ErrTooManySlots = fmt.Errorf("a pattern set holds at most %d slots", MaxSlots)

// PatternSlot is one user-configurable chapter heading rule.
type PatternSlot struct {
	Enabled bool
	Pattern string
}

// Pattern is a compiled full-line matcher.
type Pattern struct {
	source string
	re     *regexp2.Regexp
}

// CompilePattern compiles expr so that it only matches an entire line.
func CompilePattern(expr string, timeout time.Duration) (*Pattern, error) {
	// Compile the raw expression first so syntax errors point at the user's text.
	if _, err := regexp2.Compile(expr, regexp2.None); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}

	re, err := regexp2.Compile(`\A(?:`+expr+`)\z`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	return &Pattern{source: expr, re: re}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr, DefaultMatchTimeout)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.source
}

// MatchLine reports whether the whole line matches. The error is non-nil only
// when the match exceeded its timeout.
func (p *Pattern) MatchLine(line string) (bool, error) {
	return p.re.MatchString(line)
}

// PatternSet holds up to MaxSlots ordered slots and compiles them on demand.
type PatternSet struct {
	mu       sync.Mutex
	slots    []PatternSlot
	compiled []*Pattern
	failed   []bool
	timeout  time.Duration
	logger   *zap.Logger
}

type PatternSetOption func(*PatternSet)

func WithMatchTimeout(d time.Duration) PatternSetOption {
	return func(s *PatternSet) { s.timeout = d }
}

func WithPatternLogger(l *zap.Logger) PatternSetOption {
	return func(s *PatternSet) { s.logger = logger.OrNop(l) }
}

func NewPatternSet(slots []PatternSlot, opts ...PatternSetOption) (*PatternSet, error) {
	if len(slots) > MaxSlots {
		return nil, fmt.Errorf("%w: got %d", ErrTooManySlots, len(slots))
	}

	s := &PatternSet{
		slots:   make([]PatternSlot, MaxSlots),
		timeout: DefaultMatchTimeout,
		logger:  zap.NewNop(),
	}
	copy(s.slots, slots)
	s.resetCache()

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *PatternSet) resetCache() {
	s.compiled = make([]*Pattern, MaxSlots)
	s.failed = make([]bool, MaxSlots)
}

// Slots returns a copy of all nine slots.
func (s *PatternSet) Slots() []PatternSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PatternSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// SetSlot replaces slot i (0-based) and drops its cached compilation.
func (s *PatternSet) SetSlot(i int, slot PatternSlot) error {
	if i < 0 || i >= MaxSlots {
		return fmt.Errorf("slot %d out of range [0,%d)", i, MaxSlots)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[i] = slot
	s.compiled[i] = nil
	s.failed[i] = false
	return nil
}

// Active returns compiled patterns for enabled slots in slot order. A slot
// whose pattern does not compile is logged once and left out.
func (s *PatternSet) Active() []*Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*Pattern
	for i, slot := range s.slots {
		if !slot.Enabled || slot.Pattern == "" || s.failed[i] {
			continue
		}
		if s.compiled[i] == nil {
			p, err := CompilePattern(slot.Pattern, s.timeout)
			if err != nil {
				s.failed[i] = true
				s.logger.Warn("skipping chapter pattern",
					zap.Int("slot", i+1),
					zap.String("pattern", slot.Pattern),
					zap.Error(err),
				)
				continue
			}
			s.compiled[i] = p
		}
		active = append(active, s.compiled[i])
	}
	return active
}

// matchAny OR-combines patterns. Timeouts count as no match.
func matchAny(patterns []*Pattern, line string, log *zap.Logger) bool {
	for _, p := range patterns {
		ok, err := p.MatchLine(line)
		if err != nil {
			log.Warn("chapter pattern timed out",
				zap.String("pattern", p.source),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
