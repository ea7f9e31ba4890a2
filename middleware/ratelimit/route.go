package ratelimit

import (
	"net/http"
	"sort"

	"task-service/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
)

// RouteFunc extrai o RouteID da requisição.
type RouteFunc func(r *http.Request) domain.RouteID

// ChiRouteFunc devolve "<METHOD> <pattern>" usando o pattern que o chi casou
// (ex.: "PUT /tasks/{task_id}"), de modo que todas as URLs de uma rota dividem
// as mesmas regras.
//
// O pattern só existe depois do roteamento: o middleware deve ser instalado com
// Group/With/Route, não no Use do router raiz. Sem pattern cai no path da URL.
func ChiRouteFunc(r *http.Request) domain.RouteID {
	pattern := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		pattern = rctx.RoutePattern()
	}
	if pattern == "" {
		return PathRouteFunc(r)
	}
	return domain.RouteID(r.Method + " " + pattern)
}

// PathRouteFunc devolve "<METHOD> <path>" (usado pelo gateway, que não tem rotas).
func PathRouteFunc(r *http.Request) domain.RouteID {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	return domain.RouteID(r.Method + " " + path)
}

// KnownRouteFunc limita os RouteIDs produzidos por next aos que aparecem em
// known. Qualquer outro vira "<METHOD> *" (métodos fora do padrão HTTP viram
// "OTHER *"), então stats e métricas por rota não crescem com paths arbitrários
// do cliente. Rotas fora de known só recebem regras globais de qualquer forma.
func KnownRouteFunc(next RouteFunc, known []domain.RouteID) RouteFunc {
	set := make(map[domain.RouteID]struct{}, len(known))
	for _, id := range known {
		set[id] = struct{}{}
	}
	return func(r *http.Request) domain.RouteID {
		id := next(r)
		if _, ok := set[id]; ok {
			return id
		}
		return domain.RouteID(methodBucket(r.Method) + " *")
	}
}

func methodBucket(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}

// MissingChiRoutes devolve os RouteIDs de configured que nenhuma rota de
// router produz com ChiRouteFunc. Regras nessas rotas nunca são aplicadas
// (ex.: "POST /tasks/" com barra final).
func MissingChiRoutes(router chi.Routes, configured []domain.RouteID) ([]domain.RouteID, error) {
	registered := make(map[domain.RouteID]struct{})
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[domain.RouteID(method+" "+route)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var missing []domain.RouteID
	for _, id := range configured {
		if _, ok := registered[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}
