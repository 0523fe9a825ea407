// Package render turns a parsed report into the text handed to a sink.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
)

// Format selects the output representation.
type Format string

const (
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatCSV, FormatJSON, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q; valid values: text, csv, json, summary", s)
	}
}

// Header holds the fixed tabular column names.
var Header = []string{"User", "ResponseModule", "Question", "Correct", "Timestamp"}

const (
	fieldSep = ", "
	rowSep   = "\r\n"
)

// TableOptions tunes the tabular export.
type TableOptions struct {
	// Quote wraps fields holding a comma, quote, CR or LF in double quotes.
	// Off by default: fields are emitted verbatim.
	Quote bool
}

// Table flattens r into a header row plus one row per exchange, users in
// report order.
func Table(r *logparse.Report, cfg logparse.Config, opts TableOptions) string {
	rows := []string{strings.Join(Header, fieldSep)}
	for _, ul := range r.Users {
		for _, ex := range ul.Exchanges {
			fields := []string{
				ul.User,
				cfg.ResponseModule(ex.Modules),
				ex.Question,
				strconv.FormatBool(ex.Correct),
				ex.Timestamp.Format(logparse.ISOLayout),
			}
			if opts.Quote {
				for i, f := range fields {
					fields[i] = quoteField(f)
				}
			}
			rows = append(rows, strings.Join(fields, fieldSep))
		}
	}
	return strings.Join(rows, rowSep)
}

func quoteField(f string) string {
	if !strings.ContainsAny(f, ",\"\r\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

// Text renders r for people: one section per user, one entry per exchange.
func Text(r *logparse.Report) string {
	if len(r.Users) == 0 {
		return "No exchanges found.\n"
	}
	var sb strings.Builder
	for i, ul := range r.Users {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "User %s (%d exchanges)\n", ul.User, len(ul.Exchanges))
		for j, ex := range ul.Exchanges {
			fmt.Fprintf(&sb, "  %d. [%s] %q\n", j+1, ex.Timestamp.Format(logparse.ISOLayout), ex.Question)
			mods := "none"
			if len(ex.Modules) > 0 {
				mods = strings.Join(ex.Modules, ", ")
			}
			fmt.Fprintf(&sb, "     modules: %s | correct: %t\n", mods, ex.Correct)
		}
	}
	return sb.String()
}

type jsonExchange struct {
	Question  string   `json:"question"`
	Modules   []string `json:"modules"`
	Correct   bool     `json:"correct"`
	Timestamp string   `json:"timestamp"`
}

type jsonUser struct {
	User      string         `json:"user"`
	Exchanges []jsonExchange `json:"exchanges"`
}

// JSON renders r as an ordered list of users. Timestamps use the same
// zone-less layout as the table.
func JSON(r *logparse.Report) (string, error) {
	users := make([]jsonUser, 0, len(r.Users))
	for _, ul := range r.Users {
		ju := jsonUser{User: ul.User, Exchanges: make([]jsonExchange, 0, len(ul.Exchanges))}
		for _, ex := range ul.Exchanges {
			mods := ex.Modules
			if mods == nil {
				mods = []string{}
			}
			ju.Exchanges = append(ju.Exchanges, jsonExchange{
				Question:  ex.Question,
				Modules:   mods,
				Correct:   ex.Correct,
				Timestamp: ex.Timestamp.Format(logparse.ISOLayout),
			})
		}
		users = append(users, ju)
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// Summary renders time buckets as a table with one column per credited module.
func Summary(buckets []logparse.Bucket, cfg logparse.Config) string {
	cols := []string{"Period", "Total", "Correct", "Fallback", cfg.DefaultModule, cfg.PrimaryModule}
	rows := []string{strings.Join(cols, fieldSep)}
	for _, b := range buckets {
		rows = append(rows, strings.Join([]string{
			b.Start.Format(logparse.ISOLayout),
			strconv.Itoa(b.Total),
			strconv.Itoa(b.Correct),
			strconv.Itoa(b.Fallback),
			strconv.Itoa(b.ByModule[cfg.DefaultModule]),
			strconv.Itoa(b.ByModule[cfg.PrimaryModule]),
		}, fieldSep))
	}
	return strings.Join(rows, rowSep)
}

// Options carries what Render needs beyond the report itself.
type Options struct {
	Format    Format
	Config    logparse.Config
	Table     TableOptions
	TimeGroup logparse.TimeGroup
}

// Render produces the full output text for r in one pass, so a failure
// never leaves a partially written sink.
func Render(r *logparse.Report, opts Options) (string, error) {
	switch opts.Format {
	case FormatCSV:
		return Table(r, opts.Config, opts.Table), nil
	case FormatJSON:
		return JSON(r)
	case FormatSummary:
		group := opts.TimeGroup
		if group == "" {
			group = logparse.GroupHour
		}
		return Summary(logparse.Summarize(r, opts.Config, group), opts.Config), nil
	case FormatText, "":
		return Text(r), nil
	default:
		return "", fmt.Errorf("unknown format %q", opts.Format)
	}
}
