// utilitários pequenos para headers e corpos de resposta do controle de admissão.
//    Os corpos JSON são montados por concatenação: o formato (inclusive os espaços
//    depois de ':' e ',') faz parte do contrato com os clientes e não pode variar
//    com o encoder.

package ratelimit

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"task-service/middleware/ratelimit/domain"
)

const (
	serviceUnavailableBody = `{"error": "Service Unavailable", "message": "admission control unavailable, retry later"}`
	serverBusyBody         = `{"error": "Service Unavailable", "message": "server busy, retry later"}`
)

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// formatRetryAfter arredonda para cima, em segundos, com mínimo de 1.
func formatRetryAfter(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return formatInt(secs)
}

func tooManyRequestsBody(class domain.RuleClass) string {
	return `{"error": "Too Many Requests", "message": "` + string(class) + ` limit exceeded, retry later"}`
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
