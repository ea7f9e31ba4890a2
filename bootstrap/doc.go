// Package bootstrap monta as peças compartilhadas pelos binários (logger zap e
// a pilha de controle de admissão) a partir de config.Config.
package bootstrap
