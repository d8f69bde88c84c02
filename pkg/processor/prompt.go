package processor

import (
	"strconv"
	"strings"

	"github.com/tepantlatia/ingestor/pkg/domain"
)

// PrimaryPrompt composes the nine-line header template (the source tag
// followed by eight labeled fields) for the remote thesis source.
func PrimaryPrompt(key string, rec domain.UpstreamRecord, subject string) string {
	var b strings.Builder
	b.WriteString("SCJN/SJF\n")
	b.WriteString("Registro: " + key + "\n")
	b.WriteString("Año: " + yearOrBlank(rec.Year) + "\n")
	b.WriteString("Mes: " + rec.Month + "\n")
	b.WriteString("TipoTesis: " + rec.TipoTesis + "\n")
	b.WriteString("Época: " + rec.Epoch + "\n")
	b.WriteString("Instancia: " + rec.Instancia + "\n")
	b.WriteString("Materias: " + subject + "\n")
	b.WriteString("Rubro: " + rec.Title + "\n")
	b.WriteString("\n")
	b.WriteString(rec.Body)
	return b.String()
}

// SecondaryPrompt composes the five-line header template for the
// in-queue-payload source.
func SecondaryPrompt(entry *domain.QueueEntry, epoch string, year int) string {
	var b strings.Builder
	b.WriteString("TFJA\n")
	b.WriteString("Época: " + epoch + "\n")
	b.WriteString("Año: " + yearOrBlank(year) + "\n")
	b.WriteString("Mes:\n")
	b.WriteString("Rubro: " + entry.Title + "\n")
	b.WriteString("\n")
	b.WriteString(entry.Text)
	return b.String()
}

func yearOrBlank(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
