package xdm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errLexical = errors.New("invalid lexical form")

// Duration stores every duration type as a number of months and a number of
// seconds. Both parts share the same sign.
type Duration struct {
	Months  int64
	Seconds decimal.Decimal
}

func (d Duration) Negative() bool {
	return d.Months < 0 || d.Seconds.IsNegative()
}

func (d Duration) Zero() bool {
	return d.Months == 0 && d.Seconds.IsZero()
}

func (d Duration) Equal(other Duration) bool {
	return d.Months == other.Months && d.Seconds.Equal(other.Seconds)
}

func parseDuration(str string) (Duration, error) {
	var d Duration
	parts := durationPattern.FindStringSubmatch(str)
	if parts == nil || strings.HasSuffix(str, "P") || strings.HasSuffix(str, "T") {
		return d, errLexical
	}
	get := func(i int) int64 {
		if parts[i] == "" {
			return 0
		}
		n, _ := strconv.ParseInt(parts[i], 10, 64)
		return n
	}
	d.Months = get(2)*12 + get(3)
	secs := get(4)*86400 + get(5)*3600 + get(6)*60
	d.Seconds = decimal.NewFromInt(secs)
	if parts[7] != "" {
		s, err := decimal.NewFromString(parts[7])
		if err != nil {
			return d, errLexical
		}
		d.Seconds = d.Seconds.Add(s)
	}
	if parts[1] == "-" {
		d.Months = -d.Months
		d.Seconds = d.Seconds.Neg()
	}
	return d, nil
}

func formatDuration(t TypeID, d Duration) string {
	if d.Zero() {
		if t == YearMonthDuration {
			return "P0M"
		}
		return "PT0S"
	}
	var (
		str    strings.Builder
		months = d.Months
		secs   = d.Seconds
	)
	if d.Negative() {
		str.WriteString("-")
		months = -months
		secs = secs.Neg()
	}
	str.WriteString("P")
	if y := months / 12; y > 0 {
		str.WriteString(strconv.FormatInt(y, 10))
		str.WriteString("Y")
	}
	if m := months % 12; m > 0 {
		str.WriteString(strconv.FormatInt(m, 10))
		str.WriteString("M")
	}
	if secs.IsZero() {
		return str.String()
	}
	var (
		whole = secs.Truncate(0).IntPart()
		frac  = secs.Sub(decimal.NewFromInt(whole))
		days  = whole / 86400
		hours = (whole % 86400) / 3600
		mins  = (whole % 3600) / 60
		rest  = decimal.NewFromInt(whole % 60).Add(frac)
	)
	if days > 0 {
		str.WriteString(strconv.FormatInt(days, 10))
		str.WriteString("D")
	}
	if hours == 0 && mins == 0 && rest.IsZero() {
		return str.String()
	}
	str.WriteString("T")
	if hours > 0 {
		str.WriteString(strconv.FormatInt(hours, 10))
		str.WriteString("H")
	}
	if mins > 0 {
		str.WriteString(strconv.FormatInt(mins, 10))
		str.WriteString("M")
	}
	if !rest.IsZero() {
		str.WriteString(rest.String())
		str.WriteString("S")
	}
	return str.String()
}

// Calendar holds the components of every date and time type. Components
// that are not part of a type are left to their zero value.
type Calendar struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  decimal.Decimal
	HasZone bool
	Zone    int
}

func parseCalendar(t TypeID, str string) (Calendar, error) {
	var (
		c     Calendar
		parts []string
		zone  string
		err   error
	)
	switch t {
	case DateTime:
		if parts = dateTimePattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
		c.Hour, c.Minute = atoi(parts[4]), atoi(parts[5])
		c.Second, err = decimal.NewFromString(parts[6])
		zone = parts[7]
	case Date:
		if parts = datePattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
		zone = parts[4]
	case Time:
		if parts = timePattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Hour, c.Minute = atoi(parts[1]), atoi(parts[2])
		c.Second, err = decimal.NewFromString(parts[3])
		zone = parts[4]
	case GYearMonth:
		if parts = gYearMonthPattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = atoi(parts[1]), atoi(parts[2]), 1
		zone = parts[3]
	case GYear:
		if parts = gYearPattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = atoi(parts[1]), 1, 1
		zone = parts[2]
	case GMonthDay:
		if parts = gMonthDayPattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = 1972, atoi(parts[1]), atoi(parts[2])
		zone = parts[3]
	case GDay:
		if parts = gDayPattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = 1972, 12, atoi(parts[1])
		zone = parts[2]
	case GMonth:
		if parts = gMonthPattern.FindStringSubmatch(str); parts == nil {
			return c, errLexical
		}
		c.Year, c.Month, c.Day = 1972, atoi(parts[1]), 1
		zone = parts[2]
	default:
		return c, fmt.Errorf("%s: %w", t, ErrImplemented)
	}
	if err != nil {
		return c, errLexical
	}
	if err := c.setZone(zone); err != nil {
		return c, err
	}
	if err := c.check(t); err != nil {
		return c, err
	}
	if c.Hour == 24 {
		c.Hour = 0
		if t != Time {
			c = c.addDays(1)
		}
	}
	return c, nil
}

func (c *Calendar) setZone(zone string) error {
	if zone == "" {
		return nil
	}
	c.HasZone = true
	if zone == "Z" {
		return nil
	}
	var (
		hours = atoi(zone[1:3])
		mins  = atoi(zone[4:6])
	)
	if hours > 14 || mins > 59 || (hours == 14 && mins > 0) {
		return errLexical
	}
	c.Zone = hours*60 + mins
	if zone[0] == '-' {
		c.Zone = -c.Zone
	}
	return nil
}

func (c Calendar) check(t TypeID) error {
	if c.Month < 1 || c.Month > 12 {
		if t != Time {
			return errLexical
		}
	}
	if t != Time && (c.Day < 1 || c.Day > daysIn(c.Year, c.Month)) {
		return errLexical
	}
	if t == Time || t == DateTime {
		if c.Minute > 59 || c.Second.GreaterThanOrEqual(decimal.NewFromInt(60)) {
			return errLexical
		}
		if c.Hour > 24 || (c.Hour == 24 && (c.Minute != 0 || !c.Second.IsZero())) {
			return errLexical
		}
	}
	return nil
}

func (c Calendar) addDays(n int64) Calendar {
	days := daysFromCivil(int64(c.Year), int64(c.Month), int64(c.Day)) + n
	y, m, d := civilFromDays(days)
	c.Year, c.Month, c.Day = int(y), int(m), int(d)
	return c
}

// instant returns the number of seconds since 1970-01-01T00:00:00Z. Values
// without timezone are taken as UTC.
func (c Calendar) instant(t TypeID) decimal.Decimal {
	if t == Time {
		c.Year, c.Month, c.Day = 1972, 12, 31
	}
	var (
		days = daysFromCivil(int64(c.Year), int64(c.Month), int64(c.Day))
		secs = days*86400 + int64(c.Hour)*3600 + int64(c.Minute)*60 - int64(c.Zone)*60
	)
	return decimal.NewFromInt(secs).Add(c.Second)
}

func formatCalendar(t TypeID, c Calendar) string {
	var str strings.Builder
	switch t {
	case DateTime, DateTimeStamp:
		writeDate(&str, c)
		str.WriteString("T")
		writeTime(&str, c)
	case Date:
		writeDate(&str, c)
	case Time:
		writeTime(&str, c)
	case GYearMonth:
		writeYear(&str, c.Year)
		fmt.Fprintf(&str, "-%02d", c.Month)
	case GYear:
		writeYear(&str, c.Year)
	case GMonthDay:
		fmt.Fprintf(&str, "--%02d-%02d", c.Month, c.Day)
	case GDay:
		fmt.Fprintf(&str, "---%02d", c.Day)
	case GMonth:
		fmt.Fprintf(&str, "--%02d", c.Month)
	}
	writeZone(&str, c)
	return str.String()
}

func writeYear(str *strings.Builder, year int) {
	if year < 0 {
		str.WriteString("-")
		year = -year
	}
	fmt.Fprintf(str, "%04d", year)
}

func writeDate(str *strings.Builder, c Calendar) {
	writeYear(str, c.Year)
	fmt.Fprintf(str, "-%02d-%02d", c.Month, c.Day)
}

func writeTime(str *strings.Builder, c Calendar) {
	fmt.Fprintf(str, "%02d:%02d:", c.Hour, c.Minute)
	if c.Second.LessThan(decimal.NewFromInt(10)) {
		str.WriteString("0")
	}
	str.WriteString(c.Second.String())
}

func writeZone(str *strings.Builder, c Calendar) {
	if !c.HasZone {
		return
	}
	if c.Zone == 0 {
		str.WriteString("Z")
		return
	}
	zone := c.Zone
	sign := "+"
	if zone < 0 {
		sign = "-"
		zone = -zone
	}
	fmt.Fprintf(str, "%s%02d:%02d", sign, zone/60, zone%60)
}

func daysIn(year, month int) int {
	switch month {
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func daysFromCivil(y, m, d int64) int64 {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	var (
		yoe = y - era*400
		mp  = (m + 9) % 12
		doy = (153*mp+2)/5 + d - 1
		doe = yoe*365 + yoe/4 - yoe/100 + doy
	)
	return era*146097 + doe - 719468
}

func civilFromDays(z int64) (int64, int64, int64) {
	z += 719468
	era := z / 146097
	if z < 0 && z%146097 != 0 {
		era--
	}
	var (
		doe = z - era*146097
		yoe = (doe - doe/1460 + doe/36524 - doe/146096) / 365
		y   = yoe + era*400
		doy = doe - (365*yoe + yoe/4 - yoe/100)
		mp  = (5*doy + 2) / 153
		d   = doy - (153*mp+2)/5 + 1
		m   = mp + 3
	)
	if m > 12 {
		m -= 12
	}
	if m <= 2 {
		y++
	}
	return y, m, d
}

func atoi(str string) int {
	n, _ := strconv.Atoi(str)
	return n
}
