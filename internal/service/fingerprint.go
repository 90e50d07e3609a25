package service

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
)

// BookingFingerprint hashes the semantic content of a booking request so a replayed
// idempotency key can be matched against the request that first used it. Text fields are NFC
// normalised and the weekday mask is order-insensitive.
func BookingFingerprint(req dto.BookSessionRequest, durationMinutes int) string {
	var b strings.Builder
	field := func(name, value string) {
		value = norm.NFC.String(value)
		fmt.Fprintf(&b, "%s=%d:%s;", name, len(value), value)
	}
	field("tutor", req.TutorID)
	field("student", req.StudentID)
	field("start", strings.TrimSpace(req.StartLocal))
	field("tz", strings.TrimSpace(req.Timezone))
	field("duration", fmt.Sprint(durationMinutes))
	field("subject", strings.TrimSpace(req.Subject))
	field("notes", strings.TrimSpace(req.Notes))
	if r := req.Recurrence; r != nil {
		days := make([]int, 0, len(r.DaysOfWeek))
		for _, d := range r.DaysOfWeek {
			days = append(days, int(d))
		}
		sort.Ints(days)
		interval := r.Interval
		if interval == 0 {
			interval = 1
		}
		field("freq", string(r.Frequency))
		field("interval", fmt.Sprint(interval))
		field("days", fmt.Sprint(days))
		field("until", r.EndDate)
		field("max", fmt.Sprint(r.MaxOccurrences))
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
