package transfer

import (
	"fmt"
	"time"
)

const dateUnavailable = "Data não disponível"

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatScheduled renders a publication date as "05 de março, às 14:30".
func FormatScheduled(t *time.Time) string {
	if t == nil || t.IsZero() {
		return dateUnavailable
	}
	return fmt.Sprintf("%02d de %s, às %s", t.Day(), monthsPT[t.Month()-1], t.Format("15:04"))
}

// FormatFeedbackTime renders a thread timestamp as "05/03 às 14:30".
func FormatFeedbackTime(t time.Time) string {
	if t.IsZero() {
		return dateUnavailable
	}
	return t.Format("02/01") + " às " + t.Format("15:04")
}
