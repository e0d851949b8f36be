package service

import (
	"fmt"
	"time"
)

const numberAttempts = 5

// invoiceNumber formats the human readable number, INV-20260131-000042.
func invoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%06d", day.UTC().Format("20060102"), seq)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
