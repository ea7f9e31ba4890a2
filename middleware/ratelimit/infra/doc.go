// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - CounterStore: contadores de janela fixa por (cliente, regra), em shards
//     escolhidos por xxhash, com janitor para expiração passiva
//   - SystemClock / ManualClock: relógio real e relógio de teste
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: estatísticas de admissão
package infra
