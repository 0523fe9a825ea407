package logparse

import (
	"fmt"
	"strings"
	"time"
)

// ParseError reports the block that stopped a run.
type ParseError struct {
	User string
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("user %q: block %q: %v", e.User, truncate(e.Line, 80), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns raw transcript text into a Report.
type Parser struct {
	Config Config
	// Year disambiguates the year-less timestamps in the log.
	Year int
	// Location for resolved timestamps; nil means time.Local.
	Location *time.Location
}

// New returns a Parser for cfg resolving timestamps into year.
func New(cfg Config, year int) *Parser {
	return &Parser{Config: cfg, Year: year}
}

// BuildExchange derives one Exchange from a block whose first line carries
// the input marker.
func (p *Parser) BuildExchange(block []string, user string) (Exchange, error) {
	if len(block) == 0 {
		return Exchange{}, &ParseError{User: user, Err: fmt.Errorf("%w: empty block", ErrTimestampFormat)}
	}
	first := block[0]

	ts, err := ResolveTimestamp(first, p.Year, p.Location)
	if err != nil {
		return Exchange{}, &ParseError{User: user, Line: first, Err: err}
	}

	var question string
	if idx := strings.Index(first, p.Config.InputMarker); idx >= 0 {
		question = first[idx+len(p.Config.InputMarker):]
	}

	text := strings.Join(block, "\n")
	return Exchange{
		Question:  question,
		Modules:   p.Config.DetectModules(text),
		Correct:   !strings.Contains(text, p.Config.FallbackResponse),
		Timestamp: ts,
	}, nil
}

// Parse runs discovery, segmentation and exchange building over raw. The
// first malformed block aborts the run; no partial report is returned.
func (p *Parser) Parse(raw string) (*Report, error) {
	users := p.Config.DiscoverUsers(raw)
	lines := SplitLines(raw)

	report := &Report{Users: make([]UserLog, 0, len(users))}
	for _, user := range users {
		blocks := p.Config.SegmentBlocks(lines, user)
		ul := UserLog{User: user, Exchanges: make([]Exchange, 0, len(blocks))}
		for _, block := range blocks {
			ex, err := p.BuildExchange(block, user)
			if err != nil {
				return nil, err
			}
			ul.Exchanges = append(ul.Exchanges, ex)
		}
		report.Users = append(report.Users, ul)
	}
	return report, nil
}
