// Package ratelimit fornece os adapters HTTP (net/http) do controle de admissão
// e do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: regras, veredito e contratos (sem dependência de net/http)
//   - application: RuleSet, Limiter e ConcurrencyService, sem net/http
//   - infra: CounterStore em memória (janela fixa, shards), relógios, semáforo e stats
//   - ratelimit (este pacote): middlewares HTTP, extração de chave/rota e
//     tradução do veredito para status/headers
//
// Fluxo por requisição:
//
//  1. Extrai a chave do cliente (header/XFF/RemoteAddr) e o RouteID
//     ("<METHOD> <pattern do chi>")
//  2. Limiter.Evaluate consulta todas as regras globais e da rota
//  3. Se rejeitado responde 429 com o corpo JSON padrão e Retry-After;
//     se o store estiver inconsistente responde 503 (falha fechada)
//  4. Se admitido chama o próximo handler sem alterar a requisição
package ratelimit
