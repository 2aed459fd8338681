package utils

import (
	"fmt"
	"time"
)

// KST is the Korea Standard Time location (UTC+9).
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// DateLayout is the YYYYMMDD layout of DART date parameters.
const DateLayout = "20060102"

// NowKST returns the current time in KST.
func NowKST() time.Time {
	return time.Now().In(KST)
}

// FormatDate formats t as a DART date (YYYYMMDD) in KST.
func FormatDate(t time.Time) string {
	return t.In(KST).Format(DateLayout)
}

// ParseDate parses a DART date (YYYYMMDD) as midnight KST.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYYMMDD", s)
	}
	return t, nil
}

// YearRange returns the inclusive list of years from start to end. It is
// empty when start > end.
func YearRange(start, end int) []int {
	if start > end {
		return nil
	}
	years := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, y)
	}
	return years
}
