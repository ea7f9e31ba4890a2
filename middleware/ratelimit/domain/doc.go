// Package domain define contratos e tipos do controle de admissão: regras de
// janela fixa (Rule/Scope), identidade do cliente e da rota, o veredito do
// Limiter, o relógio e o CounterStore.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
