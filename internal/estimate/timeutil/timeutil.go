package timeutil

import "time"

var almatyLocation = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Almaty")
	if err != nil {
		return time.FixedZone("Asia/Almaty", 5*60*60)
	}
	return loc
}

// Now returns the current time in Asia/Almaty timezone.
func Now() time.Time {
	return time.Now().In(almatyLocation)
}

// InAlmaty converts provided time to Asia/Almaty timezone.
func InAlmaty(t time.Time) time.Time {
	return t.In(almatyLocation)
}

// LocalHour returns the hour of the provided time in Asia/Almaty timezone.
func LocalHour(t time.Time) int {
	return t.In(almatyLocation).Hour()
}

// IsWeekend reports whether the provided time falls on Saturday or Sunday
// in Asia/Almaty timezone.
func IsWeekend(t time.Time) bool {
	wd := t.In(almatyLocation).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Location returns Asia/Almaty location instance.
func Location() *time.Location {
	return almatyLocation
}
