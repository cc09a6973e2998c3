// Package ui renders startup progress: symbol registration and
// relationship discovery. Never touched on the ingress hot path.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Spinner provides rotating visual feedback for a long-running setup step.
type Spinner struct {
	chars    []string
	current  int
	interval time.Duration
	stop     chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewSpinner creates a dot-style spinner.
func NewSpinner() *Spinner {
	return &Spinner{
		chars:    []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 100 * time.Millisecond,
		stop:     make(chan struct{}, 1),
	}
}

// Start begins the spinner's background animation goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.spin()
}

// Stop terminates the animation goroutine.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stop <- struct{}{}
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.mu.Unlock()
		}
	}
}

// Current returns the spinner's current frame.
func (s *Spinner) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[s.current]
}

// Progress reports discrete setup progress: symbol registration,
// relation discovery. It degrades to plain line-at-a-time output when
// stdout is not a terminal (piped logs, CI) rather than emitting
// carriage-return control sequences into a log file.
type Progress struct {
	mu       sync.Mutex
	name     string
	total    int
	current  int
	start    time.Time
	spinner  *Spinner
	isTTY    bool
}

// New builds a Progress reporter for a named step with a known total.
func New(name string, total int) *Progress {
	p := &Progress{
		name:  name,
		total: total,
		start: time.Now(),
		isTTY: term.IsTerminal(int(os.Stdout.Fd())),
	}
	if p.isTTY {
		p.spinner = NewSpinner()
		p.spinner.Start()
	}
	return p
}

// Step advances progress by one and prints the current state.
func (p *Progress) Step(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++

	if !p.isTTY {
		fmt.Printf("%s: %d/%d %s\n", p.name, p.current, p.total, message)
		return
	}

	var b strings.Builder
	b.WriteString("\r\033[K")
	if p.spinner != nil {
		b.WriteString(p.spinner.Current())
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("%s [%d/%d] %s", p.name, p.current, p.total, message))
	fmt.Print(b.String())
}

// Done stops the spinner and prints a final summary line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.Stop()
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	if p.isTTY {
		fmt.Printf("\r\033[K%s done (%d items, %v)\n", p.name, p.total, elapsed)
	} else {
		fmt.Printf("%s: done (%d items, %v)\n", p.name, p.total, elapsed)
	}
}
