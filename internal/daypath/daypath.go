package daypath

import (
	"path/filepath"
	"time"
)

// Day is a calendar day as the zero-padded strings used in recording paths.
type Day struct {
	Year  string
	Month string
	Day   string
}

// Paths holds the per-day source and archive directories.
type Paths struct {
	Source  string
	Archive string
}

// Resolve returns the calendar day offset days before now, in now's location.
// Offsets below zero are treated as zero.
func Resolve(now time.Time, offset int) Day {
	if offset < 0 {
		offset = 0
	}
	d := now.AddDate(0, 0, -offset)
	return Day{
		Year:  d.Format("2006"),
		Month: d.Format("01"),
		Day:   d.Format("02"),
	}
}

// String renders the day as YYYY/MM/DD.
func (d Day) String() string {
	return d.Year + "/" + d.Month + "/" + d.Day
}

// Build joins both roots with /year/month/day.
func Build(sourceRoot, archiveRoot string, day Day) Paths {
	return Paths{
		Source:  filepath.Join(sourceRoot, day.Year, day.Month, day.Day),
		Archive: filepath.Join(archiveRoot, day.Year, day.Month, day.Day),
	}
}
