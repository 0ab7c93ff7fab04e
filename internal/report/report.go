// Package report consolidates the open and credential logs, plus an optional
// GoPhish event export, into a per-recipient CSV summary of a campaign.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Headers are the CSV columns, in order
var Headers = []string{
	"Email/Recipient",
	"Email Sent",
	"Email Sent Timestamp",
	"Opened",
	"First Open Timestamp",
	"Clicked Link",
	"First Click Timestamp",
	"Credentials Submitted",
	"First Submit Timestamp",
	"Captured Password (sample)",
}

var (
	openLine        = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - Opened by recipient ID: (.*) - IP: (.*)$`)
	credentialsLine = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - IP: (.*?) - Username: (.*?) - Password: (.*)$`)
)

// GophishEvent is one entry of a GoPhish JSON export
type GophishEvent struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Submission is one captured credential pair
type Submission struct {
	Time     string
	Password string
}

// Row is one recipient in the report
type Row struct {
	Recipient      string
	Sent           bool
	SentAt         string
	Opened         bool
	FirstOpenAt    string
	Clicked        bool
	FirstClickAt   string
	Submitted      bool
	FirstSubmitAt  string
	PasswordSample string
}

// Sources names the inputs of a report. GophishPath may be empty.
type Sources struct {
	OpensPath       string
	CredentialsPath string
	GophishPath     string
}

// ParseGophish reads a GoPhish export keyed by recipient email. A missing
// email is recorded under unknown@example.com.
func ParseGophish(r io.Reader) (map[string][]GophishEvent, error) {
	var entries []GophishEvent
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("invalid gophish export: %w", err)
	}

	events := make(map[string][]GophishEvent)
	for _, e := range entries {
		email := e.Email
		if email == "" {
			email = "unknown@example.com"
		}
		events[email] = append(events[email], e)
	}
	return events, nil
}

// ParseOpens maps recipient ids to their open timestamps in log order
func ParseOpens(r io.Reader) (map[string][]string, error) {
	opens := make(map[string][]string)
	err := scanLines(r, func(line string) {
		m := openLine.FindStringSubmatch(line)
		if m == nil {
			return
		}
		rid := strings.TrimSpace(m[2])
		opens[rid] = append(opens[rid], m[1])
	})
	return opens, err
}

// ParseCredentials maps submitted usernames to their submissions in log order
func ParseCredentials(r io.Reader) (map[string][]Submission, error) {
	creds := make(map[string][]Submission)
	err := scanLines(r, func(line string) {
		m := credentialsLine.FindStringSubmatch(line)
		if m == nil {
			return
		}
		user := strings.TrimSpace(m[3])
		creds[user] = append(creds[user], Submission{
			Time:     m[1],
			Password: strings.TrimSpace(m[4]),
		})
	})
	return creds, err
}

func scanLines(r io.Reader, fn func(line string)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		// Trailing spaces are significant: an empty password ends the line
		// with "Password: "
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if strings.TrimSpace(line) != "" {
			fn(line)
		}

		if err != nil {
			return nil
		}
	}
}

// Consolidate merges the three sources into one row per recipient, sorted.
// Pixel ids only become recipients when they look like an email address.
func Consolidate(gophish map[string][]GophishEvent, opens map[string][]string, creds map[string][]Submission) []Row {
	recipients := make(map[string]struct{})
	for email := range gophish {
		recipients[email] = struct{}{}
	}
	for rid := range opens {
		if strings.Contains(rid, "@") {
			recipients[rid] = struct{}{}
		}
	}
	for user := range creds {
		recipients[user] = struct{}{}
	}

	names := make([]string, 0, len(recipients))
	for name := range recipients {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]Row, 0, len(names))
	for _, name := range names {
		ev := gophish[name]
		op := opens[name]
		cr := creds[name]

		row := Row{Recipient: name}

		row.SentAt, row.Sent = firstStatus(ev, "sent")

		clickAt, clicked := firstStatus(ev, "click")
		row.Clicked, row.FirstClickAt = clicked, clickAt

		openAt, openedByGophish := firstStatus(ev, "open")
		row.Opened = len(op) > 0 || openedByGophish
		if len(op) > 0 {
			row.FirstOpenAt = op[0]
		} else {
			row.FirstOpenAt = openAt
		}

		submitAt, submittedByGophish := firstStatus(ev, "submitted")
		row.Submitted = len(cr) > 0 || submittedByGophish
		if len(cr) > 0 {
			row.FirstSubmitAt = cr[0].Time
			row.PasswordSample = cr[0].Password
		} else {
			row.FirstSubmitAt = submitAt
		}

		rows = append(rows, row)
	}
	return rows
}

// firstStatus returns the time of the first event whose status contains
// needle, case-insensitively
func firstStatus(events []GophishEvent, needle string) (string, bool) {
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Status), needle) {
			return e.Time, true
		}
	}
	return "", false
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteCSV writes the header and rows
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Recipient,
			yesNo(r.Sent),
			r.SentAt,
			yesNo(r.Opened),
			r.FirstOpenAt,
			yesNo(r.Clicked),
			r.FirstClickAt,
			yesNo(r.Submitted),
			r.FirstSubmitAt,
			r.PasswordSample,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Generate reads every source and writes the CSV report to w. Missing
// sources are logged and treated as empty. It returns the number of rows.
func Generate(src Sources, w io.Writer, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	gophish := map[string][]GophishEvent{}
	if src.GophishPath != "" {
		err := withFile(src.GophishPath, logger, func(f io.Reader) error {
			parsed, err := ParseGophish(f)
			if err != nil {
				logger.Warn("skipping gophish export", zap.String("path", src.GophishPath), zap.Error(err))
				return nil
			}
			gophish = parsed
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	opens := map[string][]string{}
	if err := withFile(src.OpensPath, logger, func(f io.Reader) (err error) {
		opens, err = ParseOpens(f)
		return err
	}); err != nil {
		return 0, fmt.Errorf("failed to parse opens log: %w", err)
	}

	creds := map[string][]Submission{}
	if err := withFile(src.CredentialsPath, logger, func(f io.Reader) (err error) {
		creds, err = ParseCredentials(f)
		return err
	}); err != nil {
		return 0, fmt.Errorf("failed to parse credentials log: %w", err)
	}

	rows := Consolidate(gophish, opens, creds)
	if err := WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// withFile opens path and hands it to fn. A missing file is logged and
// skipped.
func withFile(path string, logger *zap.Logger, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("report source missing", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return fn(f)
}
