// Package resources contém o CRUD em memória (usuários e tarefas) e os
// handlers chi que o expõem. É a lógica de negócio protegida pelo controle de
// admissão; não sabe nada sobre rate limit.
package resources
