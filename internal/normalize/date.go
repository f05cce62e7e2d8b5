package normalize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int
}

// Valid reports whether p names a real month with a 4-digit year.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 1000 && p.Year <= 9999
}

// LastDay returns the last calendar day of the month, UTC midnight.
func (p Period) LastDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// DateSource records which input decided the sale date.
type DateSource string

const (
	DateFromUser     DateSource = "user"
	DateFromFilename DateSource = "filename"
	DateFromUpload   DateSource = "upload"
)

// DateResolution is the sale date for every record of one upload.
type DateResolution struct {
	Date        time.Time
	Source      DateSource
	Diagnostics []types.Diagnostic
}

// ResolveDate picks the sale date in order: the user-supplied period, a
// period in the file name, the upload date. It never fails. Both period
// sources resolve to the last day of their month.
func ResolveDate(user *Period, filename string, pattern *FilenamePattern, uploadedAt time.Time) DateResolution {
	var res DateResolution

	if user != nil {
		if user.Valid() {
			res.Date, res.Source = user.LastDay(), DateFromUser
			return res
		}
		res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
			Kind:   types.DiagInvalidUserPeriod,
			Detail: fmt.Sprintf("ignored user period year=%d month=%d", user.Year, user.Month),
		})
	}

	if pattern != nil {
		if p, ok := pattern.Extract(filename); ok {
			res.Date, res.Source = p.LastDay(), DateFromFilename
			return res
		}
	}

	u := uploadedAt.UTC()
	res.Date = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	res.Source = DateFromUpload
	return res
}

// =============================================================================
// FILE NAME PERIODS
// =============================================================================

// FilenamePattern extracts a period from a vendor's documented file name.
type FilenamePattern struct {
	re *regexp.Regexp
}

// CompileFilenamePattern compiles expr, which must have named groups
// "year" and "month".
func CompileFilenamePattern(expr string) (*FilenamePattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filename date pattern: %w", err)
	}
	if re.SubexpIndex("year") < 0 || re.SubexpIndex("month") < 0 {
		return nil, fmt.Errorf("filename date pattern %q needs named groups year and month", expr)
	}
	return &FilenamePattern{re: re}, nil
}

// Extract matches the base name of filename. Months may be numeric or
// English month names.
func (p *FilenamePattern) Extract(filename string) (Period, bool) {
	m := p.re.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return Period{}, false
	}
	year, err := strconv.Atoi(m[p.re.SubexpIndex("year")])
	if err != nil {
		return Period{}, false
	}
	month, ok := parseMonth(m[p.re.SubexpIndex("month")])
	if !ok {
		return Period{}, false
	}
	period := Period{Year: year, Month: month}
	return period, period.Valid()
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

func parseMonth(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= 12
	}
	s = strings.ToLower(s)
	if n, ok := monthNames[s]; ok {
		return n, true
	}
	for i := 1; i <= 12; i++ {
		if strings.ToLower(time.Month(i).String()) == s {
			return i, true
		}
	}
	return 0, false
}
