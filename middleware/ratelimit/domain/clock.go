package domain

import "time"

// Clock é a fonte de tempo do controle de admissão.
//
// Now nunca falha e nunca retrocede dentro do processo.
type Clock interface {
	Now() time.Time
}
