package xdm

import (
	"encoding/base64"
	"regexp"
	"strings"
)

const (
	reNCName = `[\pL_][\pL\pN\.\-_\x{B7}]*`
	reZone   = `(Z|[+-]\d{2}:\d{2})?`
)

var (
	boolPattern     = regexp.MustCompile(`^(true|false|1|0)$`)
	decimalPattern  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	integerPattern  = regexp.MustCompile(`^[+-]?\d+$`)
	doublePattern   = regexp.MustCompile(`^([+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|[+-]?INF|NaN)$`)
	hexPattern      = regexp.MustCompile(`^([0-9a-fA-F]{2})*$`)
	ncnamePattern   = regexp.MustCompile(`^` + reNCName + `$`)
	qnamePattern    = regexp.MustCompile(`^(` + reNCName + `:)?` + reNCName + `$`)
	namePattern     = regexp.MustCompile(`^[\pL_:][\pL\pN\.\-_:\x{B7}]*$`)
	nmtokenPattern  = regexp.MustCompile(`^[\pL\pN\.\-_:\x{B7}]+$`)
	languagePattern = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)

	durationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d*)?)S)?)?$`)

	dateTimePattern   = regexp.MustCompile(`^(-?\d{4,})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)` + reZone + `$`)
	datePattern       = regexp.MustCompile(`^(-?\d{4,})-(\d{2})-(\d{2})` + reZone + `$`)
	timePattern       = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)` + reZone + `$`)
	gYearMonthPattern = regexp.MustCompile(`^(-?\d{4,})-(\d{2})` + reZone + `$`)
	gYearPattern      = regexp.MustCompile(`^(-?\d{4,})` + reZone + `$`)
	gMonthDayPattern  = regexp.MustCompile(`^--(\d{2})-(\d{2})` + reZone + `$`)
	gDayPattern       = regexp.MustCompile(`^---(\d{2})` + reZone + `$`)
	gMonthPattern     = regexp.MustCompile(`^--(\d{2})` + reZone + `$`)
)

func isBoolean(str string) bool {
	return boolPattern.MatchString(str)
}

func isDecimal(str string) bool {
	return decimalPattern.MatchString(str)
}

func isInteger(str string) bool {
	return integerPattern.MatchString(str)
}

func isDouble(str string) bool {
	return doublePattern.MatchString(str)
}

func isHexBinary(str string) bool {
	return hexPattern.MatchString(str)
}

func isBase64Binary(str string) bool {
	_, err := decodeBase64(str)
	return err == nil
}

func decodeBase64(str string) ([]byte, error) {
	str = strings.Join(strings.Fields(str), "")
	return base64.StdEncoding.DecodeString(str)
}

func isQName(str string) bool {
	return qnamePattern.MatchString(str)
}

func isNCName(str string) bool {
	return ncnamePattern.MatchString(str)
}

func isName(str string) bool {
	return namePattern.MatchString(str)
}

func isNMToken(str string) bool {
	return nmtokenPattern.MatchString(str)
}

func isLanguage(str string) bool {
	return languagePattern.MatchString(str)
}

func isDuration(str string) bool {
	_, err := parseDuration(str)
	return err == nil
}

func isYearMonthDuration(str string) bool {
	if !isDuration(str) {
		return false
	}
	_, _, ok := strings.Cut(str, "T")
	return !ok && !strings.HasSuffix(str, "D")
}

func isDayTimeDuration(str string) bool {
	if !isDuration(str) {
		return false
	}
	date, _, _ := strings.Cut(str, "T")
	return !strings.ContainsAny(date, "YM")
}

func isDateTime(str string) bool {
	_, err := parseCalendar(DateTime, str)
	return err == nil
}

func isDateTimeStamp(str string) bool {
	c, err := parseCalendar(DateTime, str)
	return err == nil && c.HasZone
}

func isTime(str string) bool {
	_, err := parseCalendar(Time, str)
	return err == nil
}

func isDate(str string) bool {
	_, err := parseCalendar(Date, str)
	return err == nil
}

func isGYearMonth(str string) bool {
	_, err := parseCalendar(GYearMonth, str)
	return err == nil
}

func isGYear(str string) bool {
	_, err := parseCalendar(GYear, str)
	return err == nil
}

func isGMonthDay(str string) bool {
	_, err := parseCalendar(GMonthDay, str)
	return err == nil
}

func isGDay(str string) bool {
	_, err := parseCalendar(GDay, str)
	return err == nil
}

func isGMonth(str string) bool {
	_, err := parseCalendar(GMonth, str)
	return err == nil
}
