// Package config carrega a configuração do serviço (regras de rate limit,
// limite de concorrência e backend de estatísticas) de um arquivo YAML ou JSON.
//
// Sem arquivo, Default() descreve a política padrão: limites globais de
// "200 per day" e "50 per hour" e, em POST /tasks, um burst de
// "5 per 10 seconds" somado a um throttle de "20 per minute".
package config
